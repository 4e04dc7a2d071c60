package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/skycache/skycache/internal/api/models"
)

// RateLimitConfig is a fixed-window request limit per client IP.
type RateLimitConfig struct {
	// Name identifies the limit in problem responses.
	Name         string
	RequestLimit int
	WindowLength time.Duration
}

// Per-route limits. Reads are served from the cache and are cheap; refreshes
// may reach the upstream provider; streams hold a connection open.
var (
	StreamRateLimit = RateLimitConfig{
		Name:         "weather stream",
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	RefreshRateLimit = RateLimitConfig{
		Name:         "weather refresh",
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	StandardRateLimit = RateLimitConfig{
		Name:         "standard",
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP. It relies on chi's RealIP
// having run so X-Forwarded-For is honoured.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// limitExceeded writes a 429 problem. httprate does not expose when the
// current window resets, so Retry-After is the full window.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	detail := "Rate limit exceeded. Please try again later."
	if cfg.Name != "" {
		detail = fmt.Sprintf("Rate limit exceeded for %s requests (%d per %s).", cfg.Name, cfg.RequestLimit, cfg.WindowLength)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), detail)
		problem.Instance = r.URL.Path
		problem.RetryAfter = cfg.WindowLength
		problem.Write(w)
	}
}
