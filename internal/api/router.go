// Package api provides the HTTP API for skycache.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/skycache/skycache/internal/api/handler"
	"github.com/skycache/skycache/internal/api/middleware"
	"github.com/skycache/skycache/internal/api/response"
	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	Metrics        *middleware.Metrics
	WeatherService *weather.Service
	Registry       *resilience.Registry

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// DefaultUnit is used when a request does not name a unit.
	DefaultUnit weather.Unit

	// RequireTLS rejects plain HTTP requests that were not forwarded over TLS.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)                   // Generate/propagate request ID first
	r.Use(middleware.Tracing(cfg.TracerProvider)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(response.RouteNotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.WeatherService, cfg.Registry)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.DefaultUnit, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	streamRateLimit := middleware.RateLimitByIP(middleware.StreamRateLimit)     // 10 req/min
	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)   // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Reads are served from the cache and never reach the upstream.
		r.With(standardRateLimit).Get("/weather", weatherHandler.GetWeather)

		// Refresh hits the upstream unless it joins an in-flight fetch.
		r.With(refreshRateLimit, middleware.RequireJSON).Post("/weather:refresh", weatherHandler.RefreshWeather)

		// Live subscriptions
		r.With(streamRateLimit).Get("/weather/stream", weatherHandler.StreamWeather)
		r.Route("/weather/subscriptions/{subscriptionId}", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", weatherHandler.GetSubscription)
			r.Delete("/", weatherHandler.DeleteSubscription)
			r.With(middleware.RequireJSON).Put("/unit", weatherHandler.SetSubscriptionUnit)
		})
	})

	return r
}
