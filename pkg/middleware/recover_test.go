package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/pkg/tracing"
)

func TestRecoverTranslatesPanic(t *testing.T) {
	handler := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom!")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", rr.Body.String())
}

func TestRecoverPassesThroughAbortHandler(t *testing.T) {
	handler := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

// TestKnownGapRecoverOutsideTraceLosesHeader pins the documented ordering
// limitation: when the panic translator sits outside the tracing layer, the
// translated 500 response is written to the raw response writer and carries
// no trace-id header, even though the span is reported correctly. This is a
// known gap, not a bug to silently fix here; see the Recover docs.
func TestKnownGapRecoverOutsideTraceLosesHeader(t *testing.T) {
	traced, reporter := newTraced()
	handler := Recover(nil)(traced)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracing/errorinternal", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get(tracing.TraceIDHeader),
		"translated responses lose the trace-id header when Recover is outermost")

	span := reporter.Next()
	require.NotNil(t, span, "the span is still reported despite the rewrite")
	assert.Equal(t, "/tracing/errorinternal", span.Name)
	assert.True(t, span.IsError())
}

// TestRecoverInsideTraceKeepsHeader shows the ordering that closes the gap:
// with error translation inside the instrumented span, the 500 goes through
// the wrapper's response writer and keeps the trace-id header.
func TestRecoverInsideTraceKeepsHeader(t *testing.T) {
	reporter := tracing.NewQueueReporter(0)
	tracer := tracing.NewTracer("test-server", tracing.WithReporter(reporter))

	inner := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom!")
	}))
	handler := Trace(tracer)(inner)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	span := reporter.Next()
	require.NotNil(t, span)
	assert.Equal(t, span.TraceID, rr.Header().Get(tracing.TraceIDHeader),
		"inner translation keeps the trace-id header on the response")
	assert.True(t, span.IsError(), "the translated 500 still marks the span as errored")
}
