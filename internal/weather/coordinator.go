package weather

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// FetchState is the cache-wide fetch lifecycle state.
type FetchState string

const (
	StateIdle        FetchState = "IDLE"
	StateFetching    FetchState = "FETCHING"
	StatePublished   FetchState = "PUBLISHED"
	StateFailedStale FetchState = "FAILED_STALE"
)

// Publisher receives every snapshot accepted by the cache.
type Publisher interface {
	Publish(snap Snapshot)
}

// CoordinatorConfig holds configuration for the fetch coordinator.
type CoordinatorConfig struct {
	// Source issues the upstream calls.
	Source Source

	// Cache stores accepted snapshots.
	Cache *Cache

	// Publisher is notified of accepted snapshots (optional).
	Publisher Publisher

	// Logger for coordinator operations.
	Logger zerolog.Logger

	// PrimaryTimeout bounds the observation call (default: 10 seconds).
	PrimaryTimeout time.Duration

	// ForecastTimeout bounds the forecast call (default: 10 seconds).
	ForecastTimeout time.Duration

	// MaxRetries is the number of additional attempts after a failed
	// primary call (default: 0).
	MaxRetries uint64

	// RetryInterval is the initial backoff between attempts (default: 500ms).
	RetryInterval time.Duration

	// Metrics records pipeline metrics (optional).
	Metrics *Metrics
}

// Status describes the coordinator's lifecycle state.
type Status struct {
	State          FetchState
	LastOutcome    FetchState
	LastSequence   uint64
	LastError      string
	LastAttemptAt  *time.Time
	LastSuccessAt  *time.Time
	InFlight       int
	CoalescedJoins int64
}

// Coordinator coalesces concurrent refresh requests into at most one
// in-flight upstream round trip.
type Coordinator struct {
	source          Source
	cache           *Cache
	publisher       Publisher
	logger          zerolog.Logger
	tracer          trace.Tracer
	metrics         *Metrics
	primaryTimeout  time.Duration
	forecastTimeout time.Duration
	maxRetries      uint64
	retryInterval   time.Duration

	group    singleflight.Group
	inFlight atomic.Int32
	joins    atomic.Int64

	// publishMu orders sequence assignment, cache write and broadcast.
	// sequence never falls behind the cache's stored sequence.
	publishMu sync.Mutex
	sequence  uint64

	statusMu      sync.RWMutex
	lastOutcome   FetchState
	lastError     string
	lastAttemptAt *time.Time
	lastSuccessAt *time.Time
}

// NewCoordinator creates a new fetch coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	primaryTimeout := cfg.PrimaryTimeout
	if primaryTimeout == 0 {
		primaryTimeout = 10 * time.Second
	}

	forecastTimeout := cfg.ForecastTimeout
	if forecastTimeout == 0 {
		forecastTimeout = 10 * time.Second
	}

	retryInterval := cfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = backoff.DefaultInitialInterval
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewCache()
	}

	return &Coordinator{
		source:          cfg.Source,
		cache:           cache,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		tracer:          otel.Tracer(instrumentationName),
		metrics:         cfg.Metrics,
		primaryTimeout:  primaryTimeout,
		forecastTimeout: forecastTimeout,
		maxRetries:      cfg.MaxRetries,
		retryInterval:   retryInterval,
	}
}

// refreshKey is the single coalescing key. The cache holds one snapshot, so
// at most one upstream round trip is in flight regardless of coordinate.
const refreshKey = "weather"

// flight is the shared result of one upstream round trip.
type flight struct {
	coord Coordinate
	snap  Snapshot
}

// Refresh fetches, merges and caches a new snapshot for coord.
//
// If a refresh for the same coordinate is already in flight, the caller joins
// it instead of starting another upstream round trip. A caller asking for a
// different coordinate waits for the in-flight fetch to finish and then starts
// its own. A caller whose context ends stops waiting but does not cancel the
// shared fetch.
func (c *Coordinator) Refresh(ctx context.Context, coord Coordinate) (Snapshot, error) {
	if err := coord.Validate(); err != nil {
		return Snapshot{}, err
	}

	ctx, span := c.tracer.Start(ctx, "weather.refresh",
		trace.WithAttributes(
			attribute.Float64("weather.lat", coord.Lat),
			attribute.Float64("weather.lon", coord.Lon),
		),
	)
	defer span.End()

	fetchCtx := context.WithoutCancel(ctx)
	key := coord.Key()
	for queued := 0; ; queued++ {
		led := false
		ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
			led = true
			snap, err := c.fetch(fetchCtx, coord)
			return flight{coord: coord, snap: snap}, err
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			span.SetStatus(codes.Error, "caller abandoned refresh")
			return Snapshot{}, ctx.Err()
		}

		f := res.Val.(flight)
		if !led && f.coord.Key() != key {
			continue
		}

		if !led {
			c.joins.Add(1)
			c.metrics.joined()
		}
		span.SetAttributes(
			attribute.Bool("weather.coalesced", !led),
			attribute.Int("weather.queued", queued),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return Snapshot{}, res.Err
		}
		span.SetAttributes(attribute.Int64("weather.sequence", int64(f.snap.Sequence)))
		return f.snap.clone(), nil
	}
}

// Status returns the current lifecycle state.
func (c *Coordinator) Status() Status {
	inFlight := int(c.inFlight.Load())
	state := StateIdle
	if inFlight > 0 {
		state = StateFetching
	}

	c.publishMu.Lock()
	seq := c.sequence
	c.publishMu.Unlock()

	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	return Status{
		State:          state,
		LastOutcome:    c.lastOutcome,
		LastSequence:   seq,
		LastError:      c.lastError,
		LastAttemptAt:  c.lastAttemptAt,
		LastSuccessAt:  c.lastSuccessAt,
		InFlight:       inFlight,
		CoalescedJoins: c.joins.Load(),
	}
}

func (c *Coordinator) fetch(ctx context.Context, coord Coordinate) (Snapshot, error) {
	start := time.Now()
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	c.statusMu.Lock()
	c.lastAttemptAt = &start
	c.statusMu.Unlock()

	c.logger.Debug().
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Str("source", c.source.Name()).
		Msg("fetching weather from upstream")

	var result sourceResult
	operation := func() error {
		result = fetchSources(ctx, c.source, coord, c.primaryTimeout, c.forecastTimeout)
		if result.observationErr != nil {
			c.logger.Warn().
				Err(result.observationErr).
				Str("source", c.source.Name()).
				Msg("primary observation fetch failed")
		}
		return result.observationErr
	}

	var err error
	if c.maxRetries > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.retryInterval
		bo.MaxElapsedTime = 0
		err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	} else {
		err = operation()
	}

	if err != nil {
		err = asUpstreamError("fetch observation", err)
		c.fail(err)
		c.metrics.refreshed(time.Since(start), err)
		c.logger.Error().
			Err(err).
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Uint64("cached_sequence", c.cache.Sequence()).
			Msg("weather refresh failed, keeping previous snapshot")
		return Snapshot{}, err
	}

	snap, err := c.publish(coord, result)
	c.metrics.refreshed(time.Since(start), err)
	return snap, err
}

// publish assigns the next sequence number, merges, writes and broadcasts.
func (c *Coordinator) publish(coord Coordinate, result sourceResult) (Snapshot, error) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	seq := max(c.sequence, c.cache.Sequence()) + 1
	snap, partial, err := Merge(coord,
		result.observation, result.observationErr,
		result.forecast, result.forecastErr,
		seq, time.Now())
	if err != nil {
		c.fail(err)
		return Snapshot{}, err
	}
	c.sequence = seq

	if partial != nil {
		c.metrics.partial()
		c.logger.Warn().
			Err(partial).
			Uint64("sequence", seq).
			Msg("forecast unavailable, publishing snapshot without forecast")
	}

	if err := c.cache.WriteIfNewer(snap); err != nil {
		c.metrics.staleWrite()
		c.logger.Debug().
			Uint64("sequence", seq).
			Uint64("cached_sequence", c.cache.Sequence()).
			Msg("discarding stale snapshot")
		current, _ := c.cache.Read()
		c.succeed()
		return current, nil
	}

	if c.publisher != nil {
		c.publisher.Publish(snap)
	}
	c.succeed()

	c.logger.Info().
		Uint64("sequence", seq).
		Float64("temperature_c", snap.TemperatureC).
		Bool("forecast", snap.HasForecast()).
		Msg("weather snapshot published")

	return snap, nil
}

func (c *Coordinator) succeed() {
	now := time.Now()
	c.statusMu.Lock()
	c.lastOutcome = StatePublished
	c.lastError = ""
	c.lastSuccessAt = &now
	c.statusMu.Unlock()
}

func (c *Coordinator) fail(err error) {
	c.statusMu.Lock()
	c.lastOutcome = StateFailedStale
	c.lastError = err.Error()
	c.statusMu.Unlock()
}
