// Package cache provides a TTL-bounded in-memory store used for
// compression results and briefing responses.
//
// Entries are replaced whole on write and expired lazily on read; there is
// no background sweeper. The store is single-process by design — a
// horizontally scaled deployment swaps this for an external key-value store
// behind the same interface.
package cache

import (
	"sync"
	"time"
)

// Store is a concurrency-safe map with per-store TTL and lazy expiry.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New creates a store whose entries expire ttl after being written.
func New[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and fresh. Stale entries are
// deleted on lookup.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if s.now().Sub(e.storedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, ok := s.entries[key]; ok && s.now().Sub(cur.storedAt) >= s.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, resetting its TTL.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	s.entries[key] = entry[V]{value: value, storedAt: s.now()}
	s.mu.Unlock()
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been evicted.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
