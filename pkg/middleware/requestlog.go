package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tracewire/tracewire/pkg/tracing"
)

// RequestLog logs one line per completed request, stamped with the active
// trace ID when the request is traced. Place it inside Trace so the span
// is already in the request context.
func RequestLog(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lrw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", lrw.statusCode,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			}
			if traceID := tracing.TraceIDFromContext(r.Context()); traceID != "" {
				attrs = append(attrs, "trace_id", traceID)
			}

			if lrw.statusCode >= http.StatusInternalServerError {
				log.Error("request", attrs...)
			} else {
				log.Info("request", attrs...)
			}
		})
	}
}
