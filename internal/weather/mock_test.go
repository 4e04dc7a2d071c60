package weather_test

import (
	"context"
	"sync"
	"time"

	"github.com/skycache/skycache/internal/weather"
)

// mockSource is a mock upstream source for testing.
type mockSource struct {
	mu            sync.Mutex
	primaryCalls  int
	forecastCalls int
	observation   *weather.RawObservation
	forecast      *weather.ForecastSummary
	primaryErr    error
	forecastErr   error

	// gate, when set, blocks both calls until closed.
	gate chan struct{}
	// started receives once per primary call.
	started chan struct{}

	// primaryHold and forecastHold block a single call until closed or the
	// call's context ends.
	primaryHold  chan struct{}
	forecastHold chan struct{}

	active           int
	maxActive        int
	primaryReturned  int
	forecastReturned int
}

func newMockSource() *mockSource {
	return &mockSource{
		observation: &weather.RawObservation{
			TemperatureK: 300.0,
			Humidity:     55,
			ObservedAt:   time.Unix(1700000000, 0),
			Place:        "Example",
		},
		forecast: &weather.ForecastSummary{
			Description: "light rain",
			Icon:        "10d",
			ForecastAt:  time.Unix(1700010800, 0),
		},
	}
}

func (m *mockSource) Name() string {
	return "mock"
}

func (m *mockSource) FetchObservation(ctx context.Context, _ weather.Coordinate) (*weather.RawObservation, error) {
	m.mu.Lock()
	m.primaryCalls++
	m.active++
	m.maxActive = max(m.maxActive, m.active)
	gate, started, hold := m.gate, m.started, m.primaryHold
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.primaryReturned++
		m.mu.Unlock()
	}()

	if started != nil {
		started <- struct{}{}
	}
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if err := wait(ctx, hold); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primaryErr != nil {
		return nil, m.primaryErr
	}
	obs := *m.observation
	return &obs, nil
}

func (m *mockSource) FetchForecast(ctx context.Context, _ weather.Coordinate) (*weather.ForecastSummary, error) {
	m.mu.Lock()
	m.forecastCalls++
	gate, hold := m.gate, m.forecastHold
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.forecastReturned++
		m.mu.Unlock()
	}()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if err := wait(ctx, hold); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forecastErr != nil {
		return nil, m.forecastErr
	}
	f := *m.forecast
	return &f, nil
}

func (m *mockSource) setPrimaryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primaryErr = err
}

func (m *mockSource) setForecastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecastErr = err
}

func (m *mockSource) setKelvin(k float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obs := *m.observation
	obs.TemperatureK = k
	m.observation = &obs
}

func (m *mockSource) setGate(gate, started chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	m.started = started
}

func (m *mockSource) setHolds(primary, forecast chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primaryHold = primary
	m.forecastHold = forecast
}

// maxConcurrentPrimary reports the most primary calls ever in flight at once.
func (m *mockSource) maxConcurrentPrimary() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

func (m *mockSource) returned() (primary, forecast int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primaryReturned, m.forecastReturned
}

func (m *mockSource) calls() (primary, forecast int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primaryCalls, m.forecastCalls
}

func wait(ctx context.Context, ch chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

