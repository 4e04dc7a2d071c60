package weather

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotReader provides read access to the current snapshot.
type SnapshotReader interface {
	Read() (Snapshot, bool)
}

// Hub fans accepted snapshots out to subscribers, each projected through the
// subscriber's own unit preference.
type Hub struct {
	cache   SnapshotReader
	logger  zerolog.Logger
	metrics *Metrics

	mu          sync.RWMutex
	subscribers map[string]*Subscription
}

// NewHub creates a hub that replays the current snapshot of cache to new
// subscribers. metrics may be nil.
func NewHub(cache SnapshotReader, logger zerolog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
		subscribers: make(map[string]*Subscription),
	}
}

// Subscribe registers a consumer with the given unit preference. It never
// blocks: the returned view is the current snapshot projected in unit, or the
// "no data yet" marker when nothing is cached.
func (h *Hub) Subscribe(unit Unit) (*Subscription, ProjectedView) {
	if !unit.Valid() {
		unit = UnitCelsius
	}

	sub := &Subscription{
		id:      "sub_" + uuid.New().String()[:22],
		hub:     h,
		unit:    unit,
		updates: make(chan ProjectedView, 1),
	}

	// Registration and replay happen under the hub lock so a concurrent
	// Publish is either replayed here or delivered afterwards, never lost.
	h.mu.Lock()
	initial := Unavailable(unit)
	if snap, ok := h.cache.Read(); ok {
		initial = Project(snap, unit)
		sub.lastSeq = snap.Sequence
	}
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.subscribed(1)
	h.logger.Debug().
		Str("subscription_id", sub.id).
		Str("unit", string(unit)).
		Bool("replayed", initial.Available).
		Int("subscribers", count).
		Msg("subscriber registered")

	return sub, initial
}

// Unsubscribe removes the subscription and closes its update channel.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if !ok {
		return ErrUnknownSubscription
	}

	sub.close()
	h.metrics.subscribed(-1)
	h.logger.Debug().Str("subscription_id", id).Msg("subscriber removed")
	return nil
}

// SetUnitPreference changes how future broadcasts are projected for the
// subscription. It never triggers an upstream fetch.
func (h *Hub) SetUnitPreference(id string, unit Unit) error {
	sub, err := h.Get(id)
	if err != nil {
		return err
	}
	return sub.SetUnit(unit)
}

// Get returns the live subscription with the given id.
func (h *Hub) Get(id string) (*Subscription, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return nil, ErrUnknownSubscription
	}
	return sub, nil
}

// Publish delivers snap to every live subscriber. Callers must publish
// accepted snapshots in sequence order.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		sub.deliver(snap)
	}

	h.logger.Debug().
		Uint64("sequence", snap.Sequence).
		Int("subscribers", len(h.subscribers)).
		Msg("snapshot broadcast")
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close removes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.metrics.subscribed(-int64(len(subs)))
}

// Subscription is one consumer's registration with the hub.
type Subscription struct {
	id      string
	hub     *Hub
	updates chan ProjectedView

	mu      sync.Mutex
	unit    Unit
	lastSeq uint64
	closed  bool
}

// ID returns the subscription handle.
func (s *Subscription) ID() string {
	return s.id
}

// Updates returns the channel of projected views. At most one undelivered
// view is buffered; a newer broadcast replaces it. The channel is closed on
// unsubscribe.
func (s *Subscription) Updates() <-chan ProjectedView {
	return s.updates
}

// Unit returns the current unit preference.
func (s *Subscription) Unit() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// SetUnit changes the unit preference for subsequent projections.
func (s *Subscription) SetUnit(unit Unit) error {
	if !unit.Valid() {
		return &ValidationError{Field: "unit", Value: string(unit), Err: ErrInvalidUnit}
	}

	s.mu.Lock()
	s.unit = unit
	s.mu.Unlock()
	return nil
}

// Current projects the currently cached snapshot through the subscription's
// unit, or returns the "no data yet" marker.
func (s *Subscription) Current() ProjectedView {
	unit := s.Unit()
	snap, ok := s.hub.cache.Read()
	if !ok {
		return Unavailable(unit)
	}
	return Project(snap, unit)
}

// Close unsubscribes from the hub.
func (s *Subscription) Close() error {
	return s.hub.Unsubscribe(s.id)
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || snap.Sequence <= s.lastSeq {
		return
	}

	view := Project(snap, s.unit)

	// deliver is the only sender and runs under s.mu, so after draining the
	// stale pending view the send below cannot block.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- view
	s.lastSeq = snap.Sequence
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}
