package models

// Temperature is a temperature value in a display unit.
type Temperature struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Forecast is the forecast overview attached to a weather view.
type Forecast struct {
	Description string     `json:"description"`
	Icon        string     `json:"icon,omitempty"`
	IconURL     string     `json:"iconUrl,omitempty"`
	ForecastAt  *Timestamp `json:"forecastAt,omitempty"`
}

// WeatherView is the current weather projected in one unit. When Available
// is false no snapshot has been fetched yet and only Unit and the labels are set.
type WeatherView struct {
	Available        bool         `json:"available"`
	Unit             string       `json:"unit"`
	Temperature      *Temperature `json:"temperature,omitempty"`
	TemperatureLabel string       `json:"temperatureLabel"`
	Humidity         *float64     `json:"humidity,omitempty"`
	ObservedAt       *Timestamp   `json:"observedAt,omitempty"`
	Place            string       `json:"place,omitempty"`
	Forecast         *Forecast    `json:"forecast,omitempty"`
	ForecastLabel    string       `json:"forecastLabel"`
	Sequence         uint64       `json:"sequence,omitempty"`
}

// RefreshRequest is the body of POST /v1/weather:refresh. Lat and Lon must be
// given together; both absent refreshes the default coordinate.
type RefreshRequest struct {
	Lat  *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Unit string   `json:"unit,omitempty" validate:"omitempty,max=16"`
}

// UnitPreference is the body of PUT /v1/weather/subscriptions/{id}/unit.
type UnitPreference struct {
	Unit string `json:"unit" validate:"required,max=16"`
}

// Subscription describes a live subscription and its current view.
type Subscription struct {
	ID      string      `json:"id"`
	Unit    string      `json:"unit"`
	Current WeatherView `json:"current"`
}
