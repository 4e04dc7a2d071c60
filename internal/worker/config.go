// Package worker provides background refresh of the weather cache.
package worker

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// runSlack covers merge, cache write and broadcast after the last attempt.
const runSlack = 5 * time.Second

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Interval is the period between scheduled refreshes.
	// Zero disables the schedule; RunOnStart still applies.
	Interval time.Duration

	// Timeout bounds a single refresh run, retries included.
	// Default: RefreshTimeout(10s, 2, 500ms)
	Timeout time.Duration

	// RunOnStart refreshes once as soon as the job starts.
	// Default: true
	RunOnStart bool

	// StaleAfter is how old the last successful refresh may be before the
	// health check fails.
	// Default: three intervals, or 30 minutes without a schedule
	StaleAfter time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
// StaleAfter is left zero so it follows Interval.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:   10 * time.Minute,
		Timeout:    RefreshTimeout(10*time.Second, 2, backoff.DefaultInitialInterval),
		RunOnStart: true,
	}
}

// RefreshTimeout returns a run timeout that outlasts every attempt of one
// refresh. Each attempt may take attemptTimeout, and the waits between
// attempts grow from retryInterval the way backoff's exponential policy
// does, jitter included.
func RefreshTimeout(attemptTimeout time.Duration, retries uint64, retryInterval time.Duration) time.Duration {
	total := time.Duration(retries+1)*attemptTimeout + runSlack

	wait := float64(retryInterval)
	for i := uint64(0); i < retries; i++ {
		total += time.Duration(wait * (1 + backoff.DefaultRandomizationFactor))
		wait = math.Min(wait*backoff.DefaultMultiplier, float64(backoff.DefaultMaxInterval))
	}
	return total
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultRefreshConfig().Timeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 3 * c.Interval
		if c.StaleAfter <= 0 {
			c.StaleAfter = 30 * time.Minute
		}
	}
	return c
}
