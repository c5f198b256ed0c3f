package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use. Its lifecycle is owned by the caller; nothing is shared
// between two Store values.
type Store struct {
	data map[string]domain.Thread
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Thread),
	}
}

// Save persists a deep copy of the thread.
func (s *Store) Save(ctx context.Context, threadID string, thread domain.Thread) error {
	copied := domain.Thread{ID: threadID, Turns: thread.All()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = copied
	return nil
}

// Load returns a copy so the caller can't mutate the stored thread.
func (s *Store) Load(ctx context.Context, threadID string) (domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.data[threadID]
	if !ok {
		return domain.Thread{}, domain.ErrThreadNotFound
	}
	return domain.Thread{ID: thread.ID, Turns: thread.All()}, nil
}

// Delete removes the thread.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// List returns stored thread ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
