// Package main provides the entrypoint for the skycache API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/api"
	"github.com/skycache/skycache/internal/api/middleware"
	"github.com/skycache/skycache/internal/config"
	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/telemetry"
	"github.com/skycache/skycache/internal/weather"
	"github.com/skycache/skycache/internal/weather/upstream"
	"github.com/skycache/skycache/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skycache-api"

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("invalid configuration")
	}

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting skycache API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	weatherMetrics, err := weather.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize weather metrics")
	}
	upstreamMetrics, err := upstream.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upstream metrics")
	}

	// Upstream gateway client with one circuit breaker per endpoint
	registry := resilience.NewRegistry()
	source := upstream.NewClient(upstream.ClientConfig{
		BaseURL:  cfg.Weather.BaseURL,
		Registry: registry,
		Timeout:  cfg.Weather.PrimaryTimeout,
		Metrics:  upstreamMetrics,
		Logger:   log,
	})

	defaultCoord := cfg.Weather.Coordinate()
	weatherService := weather.NewService(weather.ServiceConfig{
		Source:            source,
		Logger:            log,
		DefaultCoordinate: &defaultCoord,
		PrimaryTimeout:    cfg.Weather.PrimaryTimeout,
		ForecastTimeout:   cfg.Weather.ForecastTimeout,
		MaxRetries:        cfg.Weather.RefreshRetries,
		Metrics:           weatherMetrics,
	})
	defer weatherService.Close()

	log.Info().
		Str("base_url", cfg.Weather.BaseURL).
		Str("coordinate", defaultCoord.Key()).
		Str("default_unit", string(cfg.Weather.Unit())).
		Msg("weather service initialized")

	// Background refresh
	refreshCfg := worker.DefaultRefreshConfig()
	refreshCfg.Interval = cfg.Weather.RefreshInterval
	refreshCfg.StaleAfter = 0 // three intervals
	refreshCfg.Timeout = worker.RefreshTimeout(
		max(cfg.Weather.PrimaryTimeout, cfg.Weather.ForecastTimeout),
		cfg.Weather.RefreshRetries,
		backoff.DefaultInitialInterval,
	)
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    refreshCfg,
		Logger:    log,
		Refresher: weatherService,
	})
	if err := refreshJob.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start refresh job")
	}
	defer refreshJob.Stop()

	// Optional Pub/Sub refresh triggers
	pubsubCtx, cancelPubSub := context.WithCancel(ctx)
	defer cancelPubSub()

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(pubsubCtx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(pubsubCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		TracerProvider: tp.Tracers(),
		Metrics:        httpMetrics,
		WeatherService: weatherService,
		Registry:       registry,
		DefaultUnit:    cfg.Weather.Unit(),
		RequireTLS:     cfg.RequireTLS,
	})

	// WriteTimeout stays zero: event streams are long-lived responses.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancelPubSub()
	refreshJob.Stop()
	log.Info().Fields(refreshJob.MetricsSnapshot()).Msg("refresh job stopped")

	// Closing subscriptions ends open event streams so Shutdown can drain.
	weatherService.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
