package weather_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skycache/skycache/internal/weather"
)

func TestKelvinToCelsius(t *testing.T) {
	assert.Equal(t, 300.0-273.15, weather.KelvinToCelsius(300.0))
	assert.InDelta(t, 26.85, weather.KelvinToCelsius(300.0), 1e-9)
	assert.InDelta(t, 0.0, weather.KelvinToCelsius(273.15), 1e-9)
	assert.InDelta(t, -273.15, weather.KelvinToCelsius(0), 1e-9)
}

func TestCelsiusToFahrenheit(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		expected float64
	}{
		{"freezing", 0, 32},
		{"boiling", 100, 212},
		{"crossover", -40, -40},
		{"example snapshot", 26.85, 80.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, weather.CelsiusToFahrenheit(tt.celsius), 1e-9)
		})
	}
}

func TestFahrenheitToCelsius(t *testing.T) {
	assert.InDelta(t, 0.0, weather.FahrenheitToCelsius(32), 1e-9)
	assert.InDelta(t, 100.0, weather.FahrenheitToCelsius(212), 1e-9)
	assert.InDelta(t, -40.0, weather.FahrenheitToCelsius(-40), 1e-9)
}

func TestConversion_RoundTrip(t *testing.T) {
	for _, c := range []float64{-273.15, -89.2, -40, -0.5, 0, 0.1, 21.3, 26.85, 56.7, 1e6} {
		got := weather.FahrenheitToCelsius(weather.CelsiusToFahrenheit(c))
		assert.InDelta(t, c, got, 1e-9, "round trip of %v", c)
	}
}

func TestConvert(t *testing.T) {
	assert.Equal(t, 20.0, weather.Convert(20, weather.UnitCelsius, weather.UnitCelsius))
	assert.InDelta(t, 68.0, weather.Convert(20, weather.UnitCelsius, weather.UnitFahrenheit), 1e-9)
	assert.InDelta(t, 20.0, weather.Convert(68, weather.UnitFahrenheit, weather.UnitCelsius), 1e-9)
}

func TestProject(t *testing.T) {
	observed := time.Unix(1700000000, 0)
	snap := weather.Snapshot{
		TemperatureC: 26.85,
		Humidity:     55,
		ObservedAt:   observed,
		Place:        "Example",
		Forecast:     &weather.ForecastSummary{Description: "clear sky", Icon: "01d"},
		Sequence:     3,
	}

	f := weather.Project(snap, weather.UnitFahrenheit)
	assert.True(t, f.Available)
	assert.InDelta(t, 80.33, f.Temperature, 1e-9)
	assert.Equal(t, weather.UnitFahrenheit, f.Unit)
	assert.Equal(t, 55.0, f.Humidity)
	assert.Equal(t, observed, f.ObservedAt)
	assert.Equal(t, "Example", f.Place)
	assert.Equal(t, uint64(3), f.Sequence)
	assert.Equal(t, "clear sky", f.ForecastLabel())

	c := weather.Project(snap, weather.UnitCelsius)
	assert.Equal(t, 26.85, c.Temperature)

	// Projections never alias the snapshot's forecast.
	f.Forecast.Description = "changed"
	assert.Equal(t, "clear sky", snap.Forecast.Description)
}

func TestProject_InvalidUnitFallsBackToCelsius(t *testing.T) {
	v := weather.Project(weather.Snapshot{TemperatureC: 10}, weather.Unit("K"))
	assert.Equal(t, weather.UnitCelsius, v.Unit)
	assert.Equal(t, 10.0, v.Temperature)
}

func TestProjectedView_Labels(t *testing.T) {
	v := weather.Project(weather.Snapshot{TemperatureC: 26.85}, weather.UnitFahrenheit)
	assert.Equal(t, "80.3°F", v.TemperatureLabel())
	assert.Equal(t, "unavailable", v.ForecastLabel())

	empty := weather.Unavailable(weather.UnitCelsius)
	assert.False(t, empty.Available)
	assert.Equal(t, weather.UnitCelsius, empty.Unit)
	assert.Equal(t, "Loading...", empty.TemperatureLabel())
}
