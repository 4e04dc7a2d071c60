package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/skycache/skycache/internal/weather"
)

// ErrNeverRefreshed is returned by Healthy before the first successful refresh.
var ErrNeverRefreshed = errors.New("weather has never been refreshed")

// Refresher refreshes the default coordinate.
type Refresher interface {
	RefreshDefault(ctx context.Context) (weather.Snapshot, error)
}

// RefreshJob periodically refreshes the weather cache.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	refresher Refresher
	scheduler *gocron.Scheduler

	// ctx is cancelled by Stop so a running refresh does not outlive the job.
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	PartialRefreshes  int64

	// Timings
	LastRefreshAt       time.Time
	LastSuccessAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration

	// Outcome of the most recent run
	LastSequence uint64
	LastError    string
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Refresher Refresher
}

// NewRefreshJob creates a new refresh job. It does nothing until Start.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	ctx, cancel := context.WithCancel(context.Background())

	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		refresher: cfg.Refresher,
		scheduler: gocron.NewScheduler(time.UTC),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Sequence of the snapshot now in the cache; zero on failure.
	Sequence uint64

	// Forecast reports whether the snapshot carries forecast data.
	Forecast bool

	Err error
}

// Run refreshes the default coordinate once, bounded by the configured timeout.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Debug().Msg("starting weather refresh job")

	snap, err := j.refresher.RefreshDefault(runCtx)
	if err != nil {
		result.Err = err
	} else {
		result.Sequence = snap.Sequence
		result.Forecast = snap.HasForecast()
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	if result.Err != nil {
		j.logger.Error().
			Err(result.Err).
			Dur("duration", result.Duration).
			Msg("weather refresh job failed")
		return result
	}

	j.logger.Info().
		Dur("duration", result.Duration).
		Uint64("sequence", result.Sequence).
		Bool("forecast", result.Forecast).
		Msg("weather refresh job completed")

	return result
}

// Start schedules the job and starts the scheduler. With RunOnStart the
// first run happens immediately.
func (j *RefreshJob) Start() error {
	if j.config.Interval <= 0 {
		if !j.config.RunOnStart {
			j.logger.Info().Msg("weather refresh schedule disabled")
			return nil
		}
		if _, err := j.scheduler.Every(time.Second).LimitRunsTo(1).Do(j.runScheduled); err != nil {
			return fmt.Errorf("scheduling startup refresh: %w", err)
		}
		j.scheduler.StartAsync()
		return nil
	}

	s := j.scheduler.Every(j.config.Interval).SingletonMode()
	if !j.config.RunOnStart {
		s = s.WaitForSchedule()
	}
	if _, err := s.Do(j.runScheduled); err != nil {
		return fmt.Errorf("scheduling weather refresh: %w", err)
	}

	j.scheduler.StartAsync()

	j.logger.Info().
		Dur("interval", j.config.Interval).
		Bool("run_on_start", j.config.RunOnStart).
		Msg("weather refresh scheduled")
	return nil
}

// Stop cancels a running refresh and stops the scheduler.
func (j *RefreshJob) Stop() {
	j.cancel()
	j.scheduler.Stop()
}

func (j *RefreshJob) runScheduled() {
	j.Run(j.ctx)
}

// Healthy returns an error when no refresh has succeeded within StaleAfter.
func (j *RefreshJob) Healthy(now time.Time) error {
	m := j.GetMetrics()
	if m.LastSuccessAt.IsZero() {
		return ErrNeverRefreshed
	}
	if age := now.Sub(m.LastSuccessAt); age > j.config.StaleAfter {
		return fmt.Errorf("last successful refresh %s ago exceeds %s", age.Round(time.Second), j.config.StaleAfter)
	}
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration

	if result.Err != nil {
		j.metrics.FailedRefreshes++
		j.metrics.LastError = result.Err.Error()
		return
	}

	j.metrics.SuccessfulRefresh++
	if !result.Forecast {
		j.metrics.PartialRefreshes++
	}
	j.metrics.LastSuccessAt = result.EndTime
	j.metrics.LastSequence = result.Sequence
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		PartialRefreshes:    j.metrics.PartialRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastSuccessAt:       j.metrics.LastSuccessAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
		LastSequence:        j.metrics.LastSequence,
		LastError:           j.metrics.LastError,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"partial_refreshes":     m.PartialRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_success_at":       m.LastSuccessAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"last_sequence":         m.LastSequence,
		"last_error":            m.LastError,
	}
}
