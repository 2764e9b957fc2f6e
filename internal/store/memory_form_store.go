package store

import (
	"context"
	"sync"
	"time"

	"github.com/NomadCrew/feedback-attestation/types"
)

type memoryEntry struct {
	session   types.FormSession
	expiresAt time.Time
}

// MemoryFormStore keeps sessions in process memory. Suitable for a single replica.
type MemoryFormStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	claims  map[string]time.Time
}

var _ FormStore = (*MemoryFormStore)(nil)

// NewMemoryFormStore returns a store whose sessions expire ttl after their last save.
func NewMemoryFormStore(ttl time.Duration) *MemoryFormStore {
	return &MemoryFormStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		claims:  make(map[string]time.Time),
	}
}

func (s *MemoryFormStore) Save(_ context.Context, session *types.FormSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpired(now)
	s.entries[session.ID] = memoryEntry{
		session:   copySession(session),
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryFormStore) Get(_ context.Context, id string) (*types.FormSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	session := copySession(&entry.session)
	return &session, nil
}

func (s *MemoryFormStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.claims, id)
	return nil
}

func (s *MemoryFormStore) ClaimSubmit(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.claims[id]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.claims[id] = now.Add(ttl)
	return true, nil
}

func (s *MemoryFormStore) ReleaseSubmit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

func (s *MemoryFormStore) evictExpired(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	for id, expiresAt := range s.claims {
		if !now.Before(expiresAt) {
			delete(s.claims, id)
		}
	}
}

func copySession(session *types.FormSession) types.FormSession {
	c := *session
	if session.Snapshot.Result != nil {
		r := *session.Snapshot.Result
		c.Snapshot.Result = &r
	}
	return c
}
