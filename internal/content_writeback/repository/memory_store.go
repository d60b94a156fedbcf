package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

type memoryEntry struct {
	data     []byte
	deadline time.Time
}

// MemoryStore is a process-local session store with the same expiry semantics as the Redis store.
// Records are kept serialized so callers never share memory with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// WithClock replaces the clock used for expiry, for tests
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Put(_ context.Context, session *domain.ReviewSession, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session %s: non-positive store ttl %s", session.ID, ttl)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.ID] = memoryEntry{data: data, deadline: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.ReviewSession, error) {
	s.mu.RLock()
	entry, ok := s.data[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(entry.deadline) {
		return nil, domain.ErrSessionNotFound
	}

	var session domain.ReviewSession
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Len returns the number of records, including ones past their deadline
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
