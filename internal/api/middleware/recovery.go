package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Recoverer returns middleware that recovers from panics, logs the stack trace
// using slog, and returns a 500 Internal Server Error JSON response.
// It should be mounted after StructuredLogger so the request ID is available.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logPanic(r, rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// VoiceRecoverer is Recoverer for telephony callbacks. The provider treats a
// 5xx as a dropped call, so a panic is answered with 200 and the markup
// returned by fallback instead. If the handler already started the response
// nothing more is written.
func VoiceRecoverer(contentType string, fallback func() []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newWrapResponseWriter(w)
			defer func() {
				if rec := recover(); rec != nil {
					logPanic(r, rec)
					if wrapped.wroteHeader {
						return
					}
					w.Header().Set("Content-Type", contentType)
					w.WriteHeader(http.StatusOK)
					w.Write(fallback()) //nolint:errcheck
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

func logPanic(r *http.Request, rec any) {
	slog.Error("panic recovered",
		"request_id", chimw.GetReqID(r.Context()),
		"panic", rec,
		"method", r.Method,
		"path", r.URL.Path,
		"stack", string(debug.Stack()),
	)
}
