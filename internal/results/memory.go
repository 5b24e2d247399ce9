package results

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps results in process memory for tests and keyless dev.
type MemoryStore struct {
	mu      sync.RWMutex
	byTask  map[string]*Record
	nextID  int64
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTask: make(map[string]*Record), nowFunc: time.Now}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if existing, ok := s.byTask[rec.TaskID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		cp.ID = s.nextID
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = s.nowFunc().UTC()
		}
	}
	s.byTask[rec.TaskID] = &cp
	return nil
}

func (s *MemoryStore) MarkStatus(_ context.Context, taskID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTask[taskID]; ok {
		existing.Status = status
		return nil
	}
	s.nextID++
	s.byTask[taskID] = &Record{
		ID:        s.nextID,
		TaskID:    taskID,
		Status:    status,
		CreatedAt: s.nowFunc().UTC(),
	}
	return nil
}

func (s *MemoryStore) GetByTaskID(_ context.Context, taskID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byTask[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.nowFunc().UTC().Add(-age)
	var n int64
	for taskID, rec := range s.byTask {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.byTask, taskID)
			n++
		}
	}
	return n, nil
}

// SetNow overrides the clock for retention tests.
func (s *MemoryStore) SetNow(now func() time.Time) { s.nowFunc = now }
