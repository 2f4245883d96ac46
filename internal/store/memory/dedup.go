// Package memory provides an in-memory implementation of store.DedupStore.
// It is useful for testing and for a single listener without Redis.
package memory

import (
	"context"
	"sync"
	"time"
)

// DedupStore is an in-memory implementation of the store.DedupStore interface.
// It uses a map with mutex protection for thread-safe access.
// TTL expiration is checked on access (lazy expiration).
type DedupStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	// processed stores expiry time keyed by message id
	processed map[string]time.Time
}

// NewDedupStore creates a new in-memory dedup store. Entries live for ttl.
func NewDedupStore(ttl time.Duration) *DedupStore {
	return &DedupStore{
		ttl:       ttl,
		now:       time.Now,
		processed: make(map[string]time.Time),
	}
}

// Seen reports whether id was processed within the TTL.
func (s *DedupStore) Seen(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	expiresAt, exists := s.processed[id]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	// Check if expired (lazy expiration)
	if s.now().After(expiresAt) {
		s.mu.Lock()
		if exp, ok := s.processed[id]; ok && exp == expiresAt {
			delete(s.processed, id)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// MarkProcessed records id with a fresh TTL.
func (s *DedupStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[id] = s.now().Add(s.ttl)
	return nil
}

// Len returns the number of stored ids, expired or not.
func (s *DedupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processed)
}

// Close is a no-op for the in-memory store.
func (s *DedupStore) Close() error {
	return nil
}
