package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/pkg/tracing"
)

// conformanceRouter builds the route set used across the tracing middleware
// tests: a plain route, an error route, a panicking route, and a
// parameterized route.
func conformanceRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tracing/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/tracing/error", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "error!")
	}).Methods(http.MethodGet)
	r.HandleFunc("/tracing/errorinternal", func(http.ResponseWriter, *http.Request) {
		panic("boom!")
	}).Methods(http.MethodGet)
	r.HandleFunc("/tracing/{name}/ok", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok "+mux.Vars(req)["name"])
	}).Methods(http.MethodGet)
	return r
}

// newTraced builds an instrumented conformance handler backed by a fresh
// queue reporter.
func newTraced(opts ...TraceOption) (http.Handler, *tracing.QueueReporter) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))
	router := conformanceRouter()
	opts = append([]TraceOption{WithTemplater(MuxTemplater{Router: router})}, opts...)
	return Trace(tracer, opts...)(router), reporter
}

func TestTraceMatchedRoute(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/ok", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	span := reporter.Next()
	require.NotNil(t, span, "span must be reported")

	assert.Equal(t, "/tracing/ok", span.Name)
	assert.Equal(t, tracing.SpanKindServer, span.Kind)
	assert.False(t, span.IsError())

	method, ok := span.StringTag("http.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method)

	component, ok := span.StringTag("component")
	require.True(t, ok)
	assert.Equal(t, Component, component)

	status, ok := span.IntTag("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), status)

	assert.Equal(t, span.TraceID, rr.Header().Get(tracing.TraceIDHeader),
		"response must carry the trace-id header")
}

func TestTraceRouteTemplate(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/bazz/ok", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok bazz", rr.Body.String())

	span := reporter.Next()
	require.NotNil(t, span)

	assert.Equal(t, "/tracing/{name}/ok", span.Name,
		"operation name must be the route template, not the interpolated path")
	assert.False(t, span.IsError())
	assert.NotEmpty(t, rr.Header().Get(tracing.TraceIDHeader))
}

func TestTraceServerError(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/error", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "error!", rr.Body.String(), "handler body must pass through unchanged")

	span := reporter.Next()
	require.NotNil(t, span)

	assert.Equal(t, "/tracing/error", span.Name)
	assert.True(t, span.IsError())

	status, ok := span.IntTag("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(500), status)

	assert.Equal(t, span.TraceID, rr.Header().Get(tracing.TraceIDHeader),
		"trace-id header must be present on error responses too")
}

func TestTraceUnhandled(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)

	span := reporter.Next()
	require.NotNil(t, span)

	assert.Equal(t, OperationUnhandled, span.Name)
	assert.False(t, span.IsError())

	status, ok := span.IntTag("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(404), status)

	assert.NotEmpty(t, rr.Header().Get(tracing.TraceIDHeader))
}

func TestTracePanickingHandler(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tracing/errorinternal", nil)

	require.Panics(t, func() {
		handler.ServeHTTP(rr, req)
	}, "the wrapper must re-surface handler panics")

	span := reporter.Next()
	require.NotNil(t, span, "span must be reported even when the handler panics")

	assert.Equal(t, "/tracing/errorinternal", span.Name)
	assert.True(t, span.IsError())
	assert.Contains(t, span.StatusMessage, "boom!")

	status, ok := span.IntTag("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(500), status)

	assert.Nil(t, reporter.Next(), "the panicked request must be reported exactly once")
}

func TestTraceReportsExactlyOnce(t *testing.T) {
	handler, reporter := newTraced()

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/ok", nil))
	}

	assert.Equal(t, 3, reporter.Len(), "one span per request, no duplicates")
	for i := 0; i < 3; i++ {
		assert.NotNil(t, reporter.Next())
	}
	assert.Nil(t, reporter.Next())
}

func TestTraceContinuesRemoteTrace(t *testing.T) {
	handler, reporter := newTraced()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tracing/ok", nil)
	req.Header.Set(tracing.TraceparentHeader, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	handler.ServeHTTP(rr, req)

	span := reporter.Next()
	require.NotNil(t, span)

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.TraceID,
		"server span must join the propagated trace")
	assert.Equal(t, "b7ad6b7169203331", span.ParentID)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", rr.Header().Get(tracing.TraceIDHeader))
}

func TestTraceConcurrentRequestsDoNotCrossContaminate(t *testing.T) {
	handler, reporter := newTraced()

	const n = 32
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/ok", nil))
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	require.Equal(t, n, reporter.Len())
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		span := reporter.Next()
		require.NotNil(t, span)
		assert.False(t, seen[span.TraceID], "each request must have its own trace")
		seen[span.TraceID] = true
	}
}

func TestTraceAbortedRequest(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))

	// Handler observes cancellation and returns without writing.
	handler := Trace(tracer)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/ok", nil).WithContext(ctx))

	span := reporter.Next()
	require.NotNil(t, span, "aborted requests must still report their span")

	status, ok := span.IntTag("http.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(0), status, "no response was produced, status is best-effort zero")
}

func TestTraceSkipPaths(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))
	handler := Trace(tracer, WithSkipPaths("/healthz"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, reporter.Len(), "skipped paths must not create spans")
	assert.Empty(t, rr.Header().Get(tracing.TraceIDHeader))
}

func TestTraceNilTracer(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := Trace(nil)(inner)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
	assert.Empty(t, rr.Header().Get(tracing.TraceIDHeader))
}

func TestTraceWithoutTemplaterUsesPath(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))
	handler := Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/some/literal/path", nil))

	span := reporter.Next()
	require.NotNil(t, span)
	assert.Equal(t, "/some/literal/path", span.Name)
}

func TestTraceSpanAvailableToHandler(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))

	var handlerTraceID string
	handler := Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerTraceID = tracing.TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	span := reporter.Next()
	require.NotNil(t, span)
	assert.Equal(t, span.TraceID, handlerTraceID,
		"the active span must be reachable via request-scoped context")
}

func TestTraceHandlerReportedTemplate(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))

	handler := Trace(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetRouteTemplate(r.Context(), "/things/{id}")
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/things/42", nil))

	span := reporter.Next()
	require.NotNil(t, span)
	assert.Equal(t, "/things/{id}", span.Name,
		"handler-reported template must replace the literal path")
}

func TestSetRouteTemplateOutsideTraceIsNoop(t *testing.T) {
	// must not panic without a traced request context
	SetRouteTemplate(context.Background(), "/things/{id}")
}
