// Package session keeps the in-memory encounter state between HTTP
// requests. Encounters are ephemeral by design: only the final feedback
// record is persisted, the session itself expires after a TTL.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"virtual-clinic/internal/core"
)

// DefaultTTL is how long an idle encounter survives.
const DefaultTTL = 4 * time.Hour

// ErrNotFound is returned for unknown or expired encounter IDs.
var ErrNotFound = errors.New("encounter not found or expired")

type entry struct {
	enc      *core.Encounter
	lastSeen time.Time
}

// Store is a TTL-bounded map of live encounters keyed by UUID.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStore creates a Store. A non-positive ttl falls back to DefaultTTL.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  logger,
	}
}

// Put registers an encounter, assigns it a fresh ID and returns the ID.
func (s *Store) Put(enc *core.Encounter) string {
	id := uuid.NewString()
	enc.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{enc: enc, lastSeen: time.Now()}
	return id
}

// Get returns a live encounter and refreshes its TTL.
func (s *Store) Get(id string) (*core.Encounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Since(e.lastSeen) > s.ttl {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	e.lastSeen = time.Now()
	return e.enc, nil
}

// Replace swaps the encounter stored under an existing ID, used by the
// restart operation to begin a new case in the same session slot.
func (s *Store) Replace(id string, enc *core.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	enc.ID = id
	s.entries[id] = &entry{enc: enc, lastSeen: time.Now()}
	return nil
}

// Delete removes an encounter.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len reports the number of stored encounters, expired ones included
// until the janitor sweeps them.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops every entry older than the TTL and returns the count.
func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	cutoff := time.Now().Add(-s.ttl)
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Janitor sweeps expired encounters periodically until ctx is done.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.logger.Info("expired encounters removed", zap.Int("count", n))
			}
		}
	}
}
