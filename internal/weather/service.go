package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Source is the upstream weather source.
	Source Source

	// Logger for service operations.
	Logger zerolog.Logger

	// DefaultCoordinate is used by RefreshDefault (default: DefaultCoordinate).
	DefaultCoordinate *Coordinate

	// PrimaryTimeout bounds the observation call (default: 10 seconds).
	PrimaryTimeout time.Duration

	// ForecastTimeout bounds the forecast call (default: 10 seconds).
	ForecastTimeout time.Duration

	// MaxRetries is the number of additional attempts after a failed
	// primary call (default: 0).
	MaxRetries uint64

	// RetryInterval is the initial retry backoff (default: 500ms).
	RetryInterval time.Duration

	// Metrics records pipeline metrics (optional).
	Metrics *Metrics
}

// Service wires the snapshot cache, fetch coordinator and subscription hub.
type Service struct {
	cache       *Cache
	hub         *Hub
	coordinator *Coordinator
	logger      zerolog.Logger
	source      string
	defaultAt   Coordinate
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	defaultAt := DefaultCoordinate
	if cfg.DefaultCoordinate != nil {
		defaultAt = *cfg.DefaultCoordinate
	}

	cache := NewCache()
	hub := NewHub(cache, cfg.Logger, cfg.Metrics)
	coordinator := NewCoordinator(CoordinatorConfig{
		Source:          cfg.Source,
		Cache:           cache,
		Publisher:       hub,
		Logger:          cfg.Logger,
		PrimaryTimeout:  cfg.PrimaryTimeout,
		ForecastTimeout: cfg.ForecastTimeout,
		MaxRetries:      cfg.MaxRetries,
		RetryInterval:   cfg.RetryInterval,
		Metrics:         cfg.Metrics,
	})

	return &Service{
		cache:       cache,
		hub:         hub,
		coordinator: coordinator,
		logger:      cfg.Logger,
		source:      cfg.Source.Name(),
		defaultAt:   defaultAt,
	}
}

// Refresh fetches a new snapshot for coord, joining any in-flight fetch.
func (s *Service) Refresh(ctx context.Context, coord Coordinate) (Snapshot, error) {
	return s.coordinator.Refresh(ctx, coord)
}

// RefreshDefault refreshes the default coordinate.
func (s *Service) RefreshDefault(ctx context.Context) (Snapshot, error) {
	return s.coordinator.Refresh(ctx, s.defaultAt)
}

// Current returns the cached snapshot; false when nothing is cached yet.
func (s *Service) Current() (Snapshot, bool) {
	return s.cache.Read()
}

// View projects the cached snapshot in unit without fetching.
func (s *Service) View(unit Unit) ProjectedView {
	snap, ok := s.cache.Read()
	if !ok {
		return Unavailable(unit)
	}
	return Project(snap, unit)
}

// Subscribe registers a consumer; see Hub.Subscribe.
func (s *Service) Subscribe(unit Unit) (*Subscription, ProjectedView) {
	return s.hub.Subscribe(unit)
}

// Subscription returns a live subscription by id.
func (s *Service) Subscription(id string) (*Subscription, error) {
	return s.hub.Get(id)
}

// Unsubscribe removes a subscription.
func (s *Service) Unsubscribe(id string) error {
	return s.hub.Unsubscribe(id)
}

// SetUnitPreference changes a subscription's unit without fetching.
func (s *Service) SetUnitPreference(id string, unit Unit) error {
	return s.hub.SetUnitPreference(id, unit)
}

// DefaultCoordinate returns the coordinate used by RefreshDefault.
func (s *Service) DefaultCoordinate() Coordinate {
	return s.defaultAt
}

// ServiceStatus summarizes the service state.
type ServiceStatus struct {
	Status
	Source         string
	CachedSequence uint64
	HasSnapshot    bool
	Subscribers    int
}

// Status returns the fetch lifecycle and cache state.
func (s *Service) Status() ServiceStatus {
	seq := s.cache.Sequence()
	_, ok := s.cache.Read()
	return ServiceStatus{
		Status:         s.coordinator.Status(),
		Source:         s.source,
		CachedSequence: seq,
		HasSnapshot:    ok,
		Subscribers:    s.hub.Len(),
	}
}

// Close removes all subscriptions.
func (s *Service) Close() {
	s.hub.Close()
	s.logger.Debug().Msg("weather service closed")
}
