package middleware

import (
	"net/http"
	"strings"

	"github.com/skycache/skycache/internal/api/models"
)

// securityHeaders are set on every response before the handler runs, so a
// handler may override any of them. Weather views change on every refresh and
// must not be cached by intermediaries; the stream handler relaxes this to
// no-cache.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders adds the API's fixed security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// tlsExemptPrefix covers liveness and readiness probes, which load balancers
// send over plain HTTP.
const tlsExemptPrefix = "/v1/ops/"

// RequireTLS rejects plain-HTTP requests with a 403 problem when enabled.
// A request counts as plain HTTP when it arrived without TLS and the load
// balancer reported a non-https X-Forwarded-Proto. Requests with neither
// (direct connections in local development) pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if plainHTTP(r) && !strings.HasPrefix(r.URL.Path, tlsExemptPrefix) {
				problem := models.NewTLSRequired(GetRequestID(r.Context()))
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func plainHTTP(r *http.Request) bool {
	if r.TLS != nil {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		// The first entry is the client-facing hop.
		proto = proto[:i]
	}
	proto = strings.TrimSpace(proto)
	return proto != "" && !strings.EqualFold(proto, "https")
}
