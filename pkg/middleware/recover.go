package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover translates handler panics into 500 responses.
//
// Ordering matters relative to Trace. Trace finalizes and reports the span
// before re-raising a panic, so the span is correct in either order. The
// trace-id response header is not: Recover placed outside Trace writes its
// 500 to the raw response writer, and that response carries no trace-id
// header. Place Recover inside Trace when the header must survive panics.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					// net/http uses this sentinel to abort the response
					panic(rec)
				}
				log.Error("handler panic",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
