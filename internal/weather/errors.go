package weather

import (
	"errors"
	"fmt"
)

// Weather errors.
var (
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidUnit         = errors.New("invalid temperature unit")
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoForecast          = errors.New("no forecast data available")
	ErrStaleWrite          = errors.New("stale snapshot write rejected")
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// ValidationError reports input rejected before any upstream call.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%q", e.Err, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UpstreamError reports a failed primary observation call. It fails the
// whole refresh.
type UpstreamError struct {
	// Op is the upstream operation that failed.
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProviderUnavailable, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes every UpstreamError match ErrProviderUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

// PartialDataError reports a failed forecast call. It is logged and reflected
// only by the absence of forecast data; callers never see it.
type PartialDataError struct {
	Err error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data: %v", e.Err)
}

func (e *PartialDataError) Unwrap() error {
	return e.Err
}

// Is makes every PartialDataError match ErrNoForecast.
func (e *PartialDataError) Is(target error) bool {
	return target == ErrNoForecast
}
