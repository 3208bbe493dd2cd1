package collector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSpan(traceID, service, name string, isError bool) *Span {
	code := 1
	if isError {
		code = otlpStatusError
	}
	return &Span{
		TraceID:    traceID,
		SpanID:     "0102030405060708",
		Service:    service,
		Name:       name,
		Kind:       "server",
		StatusCode: code,
		Error:      isError,
	}
}

func TestStoreAddAndQuery(t *testing.T) {
	s := NewStore(16)
	s.Add(makeSpan("aaa", "checkout", "GET /orders", false))
	s.Add(makeSpan("bbb", "checkout", "POST /orders", true))
	s.Add(makeSpan("ccc", "billing", "GET /invoices", false))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(3), s.Total())

	all := s.Query(Query{})
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, "ccc", all[0].TraceID)
	assert.Equal(t, "aaa", all[2].TraceID)

	byService := s.Query(Query{Service: "checkout"})
	require.Len(t, byService, 2)

	byName := s.Query(Query{Name: "GET /invoices"})
	require.Len(t, byName, 1)
	assert.Equal(t, "billing", byName[0].Service)

	errs := s.Query(Query{ErrorsOnly: true})
	require.Len(t, errs, 1)
	assert.Equal(t, "bbb", errs[0].TraceID)

	limited := s.Query(Query{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, "ccc", limited[0].TraceID)
	assert.Equal(t, "bbb", limited[1].TraceID)
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(makeSpan(fmt.Sprintf("trace-%d", i), "svc", "op", false))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(5), s.Total())

	all := s.Query(Query{})
	require.Len(t, all, 3)
	assert.Equal(t, "trace-4", all[0].TraceID)
	assert.Equal(t, "trace-2", all[2].TraceID)
	assert.Empty(t, s.Trace("trace-0"))
}

func TestStoreTrace(t *testing.T) {
	s := NewStore(16)
	s.Add(makeSpan("shared", "gateway", "GET /a", false))
	s.Add(makeSpan("other", "gateway", "GET /b", false))
	s.Add(makeSpan("shared", "backend", "query", false))

	spans := s.Trace("shared")
	require.Len(t, spans, 2)
	// oldest first within a trace
	assert.Equal(t, "gateway", spans[0].Service)
	assert.Equal(t, "backend", spans[1].Service)
}

func TestStoreClear(t *testing.T) {
	s := NewStore(4)
	s.Add(makeSpan("aaa", "svc", "op", false))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Query(Query{}))
	// total survives a clear
	assert.Equal(t, uint64(1), s.Total())
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore(8)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Add(makeSpan("live", "svc", "op", false))

	select {
	case span := <-ch:
		assert.Equal(t, "live", span.TraceID)
	default:
		t.Fatal("expected a span on the subscription channel")
	}
}

func TestStoreSubscribeSlowClientDrops(t *testing.T) {
	s := NewStore(streamBuffer * 4)
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < streamBuffer*2; i++ {
		s.Add(makeSpan(fmt.Sprintf("t-%d", i), "svc", "op", false))
	}

	// the channel holds at most streamBuffer spans; the rest were dropped
	// without blocking Add
	assert.Len(t, ch, streamBuffer)
}

func TestStoreSubscribeCancelIdempotent(t *testing.T) {
	s := NewStore(8)
	_, cancel := s.Subscribe()
	cancel()
	cancel() // second cancel must not panic on the closed channel

	// adds after cancel do not panic either
	s.Add(makeSpan("aaa", "svc", "op", false))
}

func TestStoreCapacityDefault(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultCapacity, s.capacity)
}
