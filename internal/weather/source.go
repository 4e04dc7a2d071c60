package weather

import (
	"context"
	"sync"
	"time"
)

// Source defines the interface for the two upstream weather calls.
type Source interface {
	// FetchObservation fetches the primary current observation.
	FetchObservation(ctx context.Context, coord Coordinate) (*RawObservation, error)

	// FetchForecast fetches the forecast overview.
	FetchForecast(ctx context.Context, coord Coordinate) (*ForecastSummary, error)

	// Name returns the source name for logging.
	Name() string
}

// sourceResult holds the outcome of both upstream calls for one fetch.
type sourceResult struct {
	observation    *RawObservation
	observationErr error
	forecast       *ForecastSummary
	forecastErr    error
}

// fetchSources issues both upstream calls concurrently, each under its own
// timeout. A failure in one never cancels the other. The coordinate must
// already be validated.
func fetchSources(ctx context.Context, src Source, coord Coordinate, primaryTimeout, forecastTimeout time.Duration) sourceResult {
	var (
		wg     sync.WaitGroup
		result sourceResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, primaryTimeout)
		defer cancel()
		result.observation, result.observationErr = src.FetchObservation(callCtx, coord)
		if result.observationErr == nil && result.observation == nil {
			result.observationErr = ErrProviderUnavailable
		}
	}()
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, forecastTimeout)
		defer cancel()
		result.forecast, result.forecastErr = src.FetchForecast(callCtx, coord)
		if result.forecastErr == nil && result.forecast == nil {
			result.forecastErr = ErrNoForecast
		}
	}()
	wg.Wait()

	return result
}
