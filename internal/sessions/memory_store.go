package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests. Entries
// expire lazily on access.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryEntry
	locks map[string]memoryLock
}

// NewMemoryStore returns an empty store whose records live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]memoryEntry),
		locks: make(map[string]memoryLock),
	}
}

// Load returns the record for id, or ErrSessionNotFound once it expired.
func (s *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[id]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.items, id)
		return Record{}, ErrSessionNotFound
	}
	return entry.rec, nil
}

// Save stores rec and restarts its TTL.
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.ID] = memoryEntry{rec: rec, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes the record and any lock on it.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[id]
	delete(s.items, id)
	delete(s.locks, id)
	if !ok || !s.now().Before(entry.expiresAt) {
		return ErrSessionNotFound
	}
	return nil
}

// Lock takes the session lock for id unless an unexpired one is held.
func (s *MemoryStore) Lock(_ context.Context, id string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[id]; ok && s.now().Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[id] = memoryLock{token: token, expiresAt: s.now().Add(ttl)}
	return token, true, nil
}

// Unlock releases the lock if token still owns it.
func (s *MemoryStore) Unlock(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok && l.token == token {
		delete(s.locks, id)
	}
	return nil
}

// Locked reports whether an unexpired lock is held for id.
func (s *MemoryStore) Locked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	return ok && s.now().Before(l.expiresAt), nil
}
