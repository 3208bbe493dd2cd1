package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/pkg/tracing"
)

func TestChainWrap(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	router := conformanceRouter()

	chain := NewChain(
		WithChainTracer(tracer),
		WithChainTemplater(MuxTemplater{Router: router}),
		WithChainMetrics(metrics),
	)
	handler := chain.Wrap(router)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/ok", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(tracing.TraceIDHeader))

	span := reporter.Next()
	require.NotNil(t, span)
	assert.Equal(t, "/tracing/ok", span.Name)

	count := testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/tracing/ok", "200"))
	assert.Equal(t, float64(1), count)
}

func TestChainRecoversPanics(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))
	router := conformanceRouter()

	chain := NewChain(
		WithChainTracer(tracer),
		WithChainTemplater(MuxTemplater{Router: router}),
	)
	handler := chain.Wrap(router)

	rr := httptest.NewRecorder()
	// The chain's recoverer is outermost; the request completes as a 500
	// and its span is reported, but the translated response carries no
	// trace-id header (documented ordering limitation).
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/errorinternal", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get(tracing.TraceIDHeader))

	span := reporter.Next()
	require.NotNil(t, span)
	assert.True(t, span.IsError())
	assert.Equal(t, "/tracing/errorinternal", span.Name)
}

func TestChainWithoutTracer(t *testing.T) {
	chain := NewChain()
	handler := chain.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get(tracing.TraceIDHeader))
}
