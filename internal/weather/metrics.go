package weather

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skycache/skycache/internal/weather"

// Metrics holds the OpenTelemetry instruments for the refresh pipeline.
// A nil *Metrics records nothing.
type Metrics struct {
	refreshTotal    metric.Int64Counter
	refreshDuration metric.Float64Histogram
	coalesced       metric.Int64Counter
	staleWrites     metric.Int64Counter
	partialData     metric.Int64Counter
	subscribers     metric.Int64UpDownCounter
}

// NewMetrics creates the pipeline instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	refreshTotal, err := meter.Int64Counter(
		"weather.refresh.total",
		metric.WithDescription("Number of completed upstream refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	refreshDuration, err := meter.Float64Histogram(
		"weather.refresh.duration",
		metric.WithDescription("Duration of upstream refreshes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	coalesced, err := meter.Int64Counter(
		"weather.refresh.coalesced",
		metric.WithDescription("Refresh requests that joined an in-flight fetch"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	staleWrites, err := meter.Int64Counter(
		"weather.cache.stale_write",
		metric.WithDescription("Snapshot writes rejected as older than the cached snapshot"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	partialData, err := meter.Int64Counter(
		"weather.refresh.partial",
		metric.WithDescription("Refreshes that succeeded without forecast data"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	subscribers, err := meter.Int64UpDownCounter(
		"weather.subscribers",
		metric.WithDescription("Number of live subscriptions"),
		metric.WithUnit("{subscriber}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		refreshTotal:    refreshTotal,
		refreshDuration: refreshDuration,
		coalesced:       coalesced,
		staleWrites:     staleWrites,
		partialData:     partialData,
		subscribers:     subscribers,
	}, nil
}

func (m *Metrics) refreshed(duration time.Duration, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("result", result))

	ctx := context.Background()
	m.refreshTotal.Add(ctx, 1, attrs)
	m.refreshDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) joined() {
	if m == nil {
		return
	}
	m.coalesced.Add(context.Background(), 1)
}

func (m *Metrics) staleWrite() {
	if m == nil {
		return
	}
	m.staleWrites.Add(context.Background(), 1)
}

func (m *Metrics) partial() {
	if m == nil {
		return
	}
	m.partialData.Add(context.Background(), 1)
}

func (m *Metrics) subscribed(delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.subscribers.Add(context.Background(), delta)
}
