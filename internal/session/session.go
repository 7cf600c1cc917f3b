// Package session remembers, per user, the document that is waiting for a
// manual page selection.
package session

import (
	"context"
	"sync"
	"time"

	mpkg "github.com/local/editorialbrief/internal/metrics"
)

// Entry is the retained state for one user between a failed detection and
// the follow-up /pages command.
type Entry struct {
	UserID     string
	DocumentID string
	BlobRef    string
	PageCount  int
	CreatedAt  time.Time
}

// Store is safe for concurrent use. At most one entry exists per user; Put
// replaces any previous one.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, userID string) (Entry, bool, error)
	Remove(ctx context.Context, userID string) error
}

// MemoryStore keeps entries in process memory. A zero ttl disables expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.entries[e.UserID] = e
	s.mu.Unlock()
	mpkg.IncSessionOp("memory", "put", nil)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	mpkg.IncSessionOp("memory", "get", nil)
	if !ok {
		return Entry{}, false, nil
	}
	if s.expired(e) {
		s.mu.Lock()
		// re-check, a Put may have landed meanwhile
		if cur, still := s.entries[userID]; still && s.expired(cur) {
			delete(s.entries, userID)
		}
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *MemoryStore) Remove(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
	mpkg.IncSessionOp("memory", "remove", nil)
	return nil
}

// Len reports live and expired entries not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e Entry) bool {
	return s.ttl > 0 && s.now().Sub(e.CreatedAt) >= s.ttl
}
