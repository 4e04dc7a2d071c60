// Package config loads skycache configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/weather"
)

// Config holds the process configuration.
type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"development"`
	Port     string `env:"APP_PORT"  envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Weather   WeatherConfig
	Telemetry TelemetryConfig
	PubSub    PubSubConfig

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `env:"REQUIRE_TLS" envDefault:"false"`
}

// WeatherConfig configures the upstream gateway and the refresh pipeline.
type WeatherConfig struct {
	BaseURL     string  `env:"WEATHER_API_URL"      envDefault:"https://2hcwrualh8.execute-api.us-east-1.amazonaws.com/prod"`
	Lat         float64 `env:"WEATHER_LAT"          envDefault:"40.5593081"`
	Lon         float64 `env:"WEATHER_LON"          envDefault:"-111.938668"`
	DefaultUnit string  `env:"WEATHER_DEFAULT_UNIT" envDefault:"F"`

	PrimaryTimeout  time.Duration `env:"WEATHER_PRIMARY_TIMEOUT"  envDefault:"10s"`
	ForecastTimeout time.Duration `env:"WEATHER_FORECAST_TIMEOUT" envDefault:"10s"`
	RefreshRetries  uint64        `env:"WEATHER_REFRESH_RETRIES"  envDefault:"2"`

	// RefreshInterval is the background refresh period. Zero disables the
	// scheduled refresh; the startup refresh still runs.
	RefreshInterval time.Duration `env:"WEATHER_REFRESH_INTERVAL" envDefault:"10m"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `env:"OTEL_ENABLED"                envDefault:"false"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio    float64       `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1"`
	ExportInterval time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" envDefault:"15s"`
}

// PubSubConfig configures the optional refresh trigger subscription.
// The handler is disabled when ProjectID is empty.
type PubSubConfig struct {
	ProjectID    string `env:"PUBSUB_PROJECT_ID"`
	Subscription string `env:"PUBSUB_SUBSCRIPTION" envDefault:"skycache-refresh"`
}

// Load reads an optional .env file, parses the environment and validates the
// result.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the default coordinate, unit and log level.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Weather.Coordinate().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("WEATHER_LAT/WEATHER_LON: %w", err))
	}
	if _, err := weather.ParseUnit(c.Weather.DefaultUnit); err != nil {
		errs = append(errs, fmt.Errorf("WEATHER_DEFAULT_UNIT: %w", err))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.Weather.BaseURL == "" {
		errs = append(errs, errors.New("WEATHER_API_URL: must not be empty"))
	}
	if c.Weather.PrimaryTimeout <= 0 || c.Weather.ForecastTimeout <= 0 {
		errs = append(errs, errors.New("WEATHER_PRIMARY_TIMEOUT/WEATHER_FORECAST_TIMEOUT: must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG: must be between 0 and 1"))
	}
	if c.Weather.RefreshInterval < 0 {
		errs = append(errs, errors.New("WEATHER_REFRESH_INTERVAL: must not be negative"))
	}

	return errors.Join(errs...)
}

// Coordinate returns the configured default coordinate.
func (w WeatherConfig) Coordinate() weather.Coordinate {
	return weather.Coordinate{Lat: w.Lat, Lon: w.Lon}
}

// Unit returns the configured default display unit, Fahrenheit if unparsable.
func (w WeatherConfig) Unit() weather.Unit {
	unit, err := weather.ParseUnit(w.DefaultUnit)
	if err != nil {
		return weather.UnitFahrenheit
	}
	return unit
}

// Level returns the configured log level, info if unparsable.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
