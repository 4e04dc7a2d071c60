package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/api/models"
)

// Recovery returns a middleware that turns a handler panic into a 500
// problem response. When the handler already started its response, such as
// an open event stream, nothing more is written and the connection is
// dropped. http.ErrAbortHandler is re-raised untouched.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("route", routePattern(r)).
					Interface("error", rec).
					Bool("response_started", wrapped.wroteHeader).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				if wrapped.wroteHeader {
					panic(http.ErrAbortHandler)
				}

				problem := models.NewInternalError(requestID, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(wrapped)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
