// Package middleware provides HTTP server instrumentation middleware:
// tracing, metrics, request logging, and panic recovery.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tracewire/tracewire/pkg/tracing"
)

// Component identifies this middleware in span tags.
const Component = "tracewire.server"

// OperationUnhandled is the span operation name used when the router
// matched no route for the request.
const OperationUnhandled = "unhandled"

// traceConfig holds the Trace middleware configuration.
type traceConfig struct {
	templater Templater
	skipPaths map[string]bool
	log       *slog.Logger
}

// TraceOption configures the Trace middleware.
type TraceOption func(*traceConfig)

// WithTemplater sets the route template source. Without one, every span is
// named after the literal request path.
func WithTemplater(t Templater) TraceOption {
	return func(c *traceConfig) {
		c.templater = t
	}
}

// WithSkipPaths excludes exact paths from tracing, typically health checks
// and metrics endpoints that would create noise in trace data.
func WithSkipPaths(paths ...string) TraceOption {
	return func(c *traceConfig) {
		for _, p := range paths {
			c.skipPaths[p] = true
		}
	}
}

// WithLogger sets the logger for instrumentation-internal diagnostics.
func WithLogger(log *slog.Logger) TraceOption {
	return func(c *traceConfig) {
		c.log = log
	}
}

// Trace wraps an HTTP handler so every request is observed as a Server-kind
// trace span, independent of the wrapped handler's outcome.
//
// The span's operation name is the route template the configured Templater
// matched (path parameters stay as their placeholder, never interpolated
// values), or OperationUnhandled when no route matched. On completion the
// span carries component, http.method and http.status_code tags, and is
// marked errored when the status is 500 or above or the handler panicked.
// Every response written through the wrapper carries a trace-id header.
//
// Panics are re-raised after the span is finalized and reported: the
// wrapper never alters handler semantics, never retries, and never swallows
// handler failures. Finalized spans go to the tracer's reporter exactly
// once per request.
//
// Header injection happens in the wrapper's response writer. A panic
// translator placed outside this middleware writes its replacement
// response to the raw writer, so that response carries no trace-id header.
// Keep Trace outermost (or Recover inside it) if the header must survive
// panics; see the Recover docs.
func Trace(tracer *tracing.Tracer, opts ...TraceOption) func(http.Handler) http.Handler {
	cfg := &traceConfig{
		skipPaths: make(map[string]bool),
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		if tracer == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// Extract trace context from incoming request headers
			ctx := tracing.Extract(r.Context(), r.Header)

			ctx, span := tracer.Start(ctx, operationName(cfg.templater, r))
			span.SetKind(tracing.SpanKindServer)

			ctx, holder := withTemplateHolder(ctx)

			tw := &traceResponseWriter{
				ResponseWriter: w,
				traceID:        span.TraceID,
			}
			r = r.WithContext(ctx)

			defer func() {
				method := strings.ToUpper(r.Method)

				if template, ok := holder.get(); ok {
					span.SetName(template)
				}

				if rec := recover(); rec != nil {
					// Finalize and report before re-surfacing the panic.
					// The status tag is best-effort: no response was
					// produced, but an outer translator will turn this
					// into a 500.
					span.SetTag("component", Component)
					span.SetTag("http.method", method)
					span.SetIntTag("http.status_code", http.StatusInternalServerError)
					span.SetStatus(tracing.StatusError, fmt.Sprintf("panic: %v", rec))
					span.End()
					panic(rec)
				}

				status := tw.statusCode
				if !tw.headerWritten {
					if r.Context().Err() != nil {
						// Connection aborted before a response: report
						// the span anyway, with no meaningful status.
						status = 0
					} else {
						// Handler returned without writing; net/http will
						// send an implicit 200. Headers are still open,
						// so the trace-id header can be added here.
						status = http.StatusOK
						tw.Header().Set(tracing.TraceIDHeader, span.TraceID)
					}
				}

				span.SetTag("component", Component)
				span.SetTag("http.method", method)
				span.SetIntTag("http.status_code", int64(status))
				if status >= http.StatusInternalServerError {
					span.SetStatus(tracing.StatusError, fmt.Sprintf("HTTP server error: %d", status))
				} else {
					span.SetStatus(tracing.StatusOK, "")
				}
				span.End()

				cfg.log.Debug("span reported",
					"name", span.Name,
					"trace_id", span.TraceID,
					"status", status,
				)
			}()

			next.ServeHTTP(tw, r)
		})
	}
}

// operationName resolves the span name for a request: the matched route
// template, or OperationUnhandled when the router matched nothing. Without
// a templater the literal path is the best name available.
func operationName(templater Templater, r *http.Request) string {
	if templater == nil {
		return r.URL.Path
	}
	template, ok := templater.Template(r)
	if !ok {
		return OperationUnhandled
	}
	return template
}

// traceResponseWriter wraps http.ResponseWriter to capture the status code
// and inject the trace-id header on the first write.
type traceResponseWriter struct {
	http.ResponseWriter
	traceID       string
	statusCode    int
	headerWritten bool
}

// WriteHeader injects the trace-id header and captures the status code
// before writing the header.
func (w *traceResponseWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.Header().Set(tracing.TraceIDHeader, w.traceID)
		w.statusCode = code
		w.headerWritten = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write captures an implicit 200 OK if the header was not written yet.
func (w *traceResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (w *traceResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController support.
func (w *traceResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
