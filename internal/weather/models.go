package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IconURLTemplate resolves an upstream icon identifier to an image URL.
const IconURLTemplate = "https://openweathermap.org/img/wn/%s@2x.png"

// DefaultCoordinate is the fixed point served when callers do not supply one
// (South Jordan, Utah).
var DefaultCoordinate = Coordinate{Lat: 40.5593081, Lon: -111.938668}

// Coordinate represents a geographic point in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Validate checks that the coordinate lies within the valid lat/lon ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: "lat", Value: formatFloat(c.Lat), Err: ErrInvalidCoordinates}
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return &ValidationError{Field: "lon", Value: formatFloat(c.Lon), Err: ErrInvalidCoordinates}
	}
	return nil
}

// Key returns a stable identifier for the coordinate.
func (c Coordinate) Key() string {
	return formatFloat(c.Lat) + ":" + formatFloat(c.Lon)
}

// RawObservation is the primary upstream reading, as received.
type RawObservation struct {
	// Temperature in Kelvin
	TemperatureK float64

	// Humidity percentage (0-100)
	Humidity float64

	ObservedAt time.Time
	Place      string
}

// IconURL resolves an upstream icon identifier. An empty icon yields "".
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return fmt.Sprintf(IconURLTemplate, icon)
}

// ForecastSummary is the supplementary forecast overview.
type ForecastSummary struct {
	Description string
	Icon        string
	IconURL     string
	ForecastAt  time.Time
}

// Snapshot is the canonical cached weather record.
// A refresh produces a new Snapshot; fields are never modified after creation.
type Snapshot struct {
	Coordinate Coordinate

	// Temperature in Celsius, derived from the Kelvin reading
	TemperatureC float64

	Humidity   float64
	ObservedAt time.Time
	Place      string

	// Forecast is nil when the forecast call failed or returned no entries.
	Forecast *ForecastSummary

	// Sequence orders cache writes; higher is newer.
	Sequence uint64

	FetchedAt time.Time
}

// HasForecast reports whether forecast data is attached.
func (s Snapshot) HasForecast() bool {
	return s.Forecast != nil
}

// clone returns a copy that shares no pointers with s.
func (s Snapshot) clone() Snapshot {
	if s.Forecast != nil {
		f := *s.Forecast
		s.Forecast = &f
	}
	return s
}

// Unit is a temperature display unit.
type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	return u == UnitCelsius || u == UnitFahrenheit
}

// ParseUnit parses a unit name such as "C", "f" or "fahrenheit".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "celsius":
		return UnitCelsius, nil
	case "f", "fahrenheit":
		return UnitFahrenheit, nil
	default:
		return "", &ValidationError{Field: "unit", Value: s, Err: ErrInvalidUnit}
	}
}

// ProjectedView is a snapshot converted for one consumer's unit.
// It is derived on demand and never cached.
type ProjectedView struct {
	// Available is false for the "no data yet" marker; all other fields are
	// then zero except Unit.
	Available bool

	Temperature float64
	Unit        Unit
	Humidity    float64
	ObservedAt  time.Time
	Place       string
	Forecast    *ForecastSummary
	Sequence    uint64
}

// TemperatureLabel renders the temperature with one decimal, e.g. "80.3°F".
func (v ProjectedView) TemperatureLabel() string {
	if !v.Available {
		return "Loading..."
	}
	return strconv.FormatFloat(v.Temperature, 'f', 1, 64) + "°" + string(v.Unit)
}

// ForecastLabel renders the forecast description or "unavailable".
func (v ProjectedView) ForecastLabel() string {
	if v.Forecast == nil || v.Forecast.Description == "" {
		return "unavailable"
	}
	return v.Forecast.Description
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
