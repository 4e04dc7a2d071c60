package weather

import (
	"sync"
)

// Cache is the single-slot snapshot store. The zero value is an empty cache.
type Cache struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Read returns a copy of the current snapshot. The boolean is false while no
// snapshot has been stored yet.
func (c *Cache) Read() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return c.snapshot.clone(), true
}

// WriteIfNewer replaces the stored snapshot if s has a strictly greater
// sequence number. Otherwise it returns ErrStaleWrite and changes nothing.
func (c *Cache) WriteIfNewer(s Snapshot) error {
	stored := s.clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && stored.Sequence <= c.snapshot.Sequence {
		return ErrStaleWrite
	}
	c.snapshot = &stored
	return nil
}

// Sequence returns the stored snapshot's sequence number, or 0 when empty.
func (c *Cache) Sequence() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return 0
	}
	return c.snapshot.Sequence
}
