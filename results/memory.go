package results

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps outcomes in memory and expires them lazily.
type MemoryStore struct {
	policy Policy
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	outcome   Outcome
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store with the given policy.
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		policy:  policy,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the outcome for id. Returns (Outcome{}, false) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, id string) (Outcome, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return Outcome{}, false
	}

	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// re-check: a fresh Put may have replaced the entry
		if cur, ok := s.entries[id]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return Outcome{}, false
	}

	return e.outcome, true
}

// Put stores o for the policy's default TTL.
func (s *MemoryStore) Put(ctx context.Context, o Outcome) error {
	return s.PutTTL(ctx, o, 0)
}

// PutTTL stores o for ttl, clamped by the policy. A non-positive ttl uses the
// policy default. Nothing is stored when the resulting TTL is zero.
func (s *MemoryStore) PutTTL(_ context.Context, o Outcome, ttl time.Duration) error {
	if err := ValidateID(o.TaskID); err != nil {
		return err
	}

	ttl = s.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	s.entries[o.TaskID] = entry{outcome: o, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete removes the outcome for id. Idempotent.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Purge drops every expired outcome and returns how many were dropped.
func (s *MemoryStore) Purge() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored outcomes, including expired ones not yet purged.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Policy returns the retention policy.
func (s *MemoryStore) Policy() Policy {
	return s.policy
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
