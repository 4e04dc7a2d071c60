package weather

// absoluteZeroC is 0 K expressed in Celsius.
const absoluteZeroC = 273.15

// KelvinToCelsius converts a raw Kelvin reading to the canonical unit.
func KelvinToCelsius(kelvin float64) float64 {
	return kelvin - absoluteZeroC
}

// CelsiusToFahrenheit converts Celsius to Fahrenheit.
func CelsiusToFahrenheit(celsius float64) float64 {
	return celsius*9/5 + 32
}

// FahrenheitToCelsius converts Fahrenheit to Celsius. It is used only for
// externally supplied Fahrenheit inputs, never on the storage path.
func FahrenheitToCelsius(fahrenheit float64) float64 {
	return (fahrenheit - 32) * 5 / 9
}

// Convert converts value between units.
func Convert(value float64, from, to Unit) float64 {
	switch {
	case from == to:
		return value
	case from == UnitCelsius && to == UnitFahrenheit:
		return CelsiusToFahrenheit(value)
	case from == UnitFahrenheit && to == UnitCelsius:
		return FahrenheitToCelsius(value)
	default:
		return value
	}
}

// Project converts the canonical snapshot for display in unit.
// Unsupported units fall back to Celsius.
func Project(s Snapshot, unit Unit) ProjectedView {
	if !unit.Valid() {
		unit = UnitCelsius
	}

	s = s.clone()
	return ProjectedView{
		Available:   true,
		Temperature: Convert(s.TemperatureC, UnitCelsius, unit),
		Unit:        unit,
		Humidity:    s.Humidity,
		ObservedAt:  s.ObservedAt,
		Place:       s.Place,
		Forecast:    s.Forecast,
		Sequence:    s.Sequence,
	}
}

// Unavailable returns the "no data yet" marker for unit.
func Unavailable(unit Unit) ProjectedView {
	return ProjectedView{Unit: unit}
}
