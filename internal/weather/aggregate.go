package weather

import (
	"errors"
	"time"
)

// Merge combines the two upstream results into a canonical snapshot.
//
// A primary failure fails the merge with an *UpstreamError and no snapshot.
// A forecast failure still yields a snapshot without forecast; the second
// return value is then a *PartialDataError for the caller to log.
func Merge(
	coord Coordinate,
	obs *RawObservation, obsErr error,
	forecast *ForecastSummary, forecastErr error,
	sequence uint64, now time.Time,
) (Snapshot, *PartialDataError, error) {
	if obsErr != nil {
		return Snapshot{}, nil, asUpstreamError("fetch observation", obsErr)
	}
	if obs == nil {
		return Snapshot{}, nil, &UpstreamError{Op: "fetch observation", Err: ErrProviderUnavailable}
	}

	snap := Snapshot{
		Coordinate:   coord,
		TemperatureC: KelvinToCelsius(obs.TemperatureK),
		Humidity:     obs.Humidity,
		ObservedAt:   obs.ObservedAt,
		Place:        obs.Place,
		Sequence:     sequence,
		FetchedAt:    now,
	}

	var partial *PartialDataError
	switch {
	case forecastErr != nil:
		partial = &PartialDataError{Err: forecastErr}
	case forecast == nil:
		partial = &PartialDataError{Err: ErrNoForecast}
	default:
		f := *forecast
		if f.IconURL == "" {
			f.IconURL = IconURL(f.Icon)
		}
		snap.Forecast = &f
	}

	return snap, partial, nil
}

func asUpstreamError(op string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	return &UpstreamError{Op: op, Err: err}
}
