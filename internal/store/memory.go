package store

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// All coordination funnels through the single lock, which makes the
// check-version-then-write sequence trivially atomic. It is used in
// tests and anywhere a persistent backend is not required.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uint64]Record
	lastID  uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uint64]Record)}
}

// Insert stores a new record built from the given fields and returns a
// copy stamped with its assigned ID and initial version.
func (s *MemoryStore) Insert(ctx context.Context, fields map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	rec := Record{ID: s.lastID, Version: NewVersion(), Fields: fields}.Clone()
	s.records[rec.ID] = rec
	return rec.Clone(), nil
}

// Get returns a copy of the latest committed state of the record.
func (s *MemoryStore) Get(ctx context.Context, id uint64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// ConditionalUpdate applies mutate under the store lock only when the
// stored version equals expected. The mutator runs against a private
// copy; if it returns an error, nothing is committed.
func (s *MemoryStore) ConditionalUpdate(ctx context.Context, id uint64, expected VersionToken, mutate Mutator) (VersionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return "", ErrNotFound
	}
	if rec.Version != expected {
		return "", &ConflictError{Attempted: expected, Current: rec.Clone()}
	}
	next := rec.Clone()
	if err := mutate(next.Fields); err != nil {
		return "", err
	}
	next.Version = NewVersion()
	s.records[id] = next
	return next.Version, nil
}

// ConditionalDelete removes the record only when the stored version
// equals expected.
func (s *MemoryStore) ConditionalDelete(ctx context.Context, id uint64, expected VersionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Version != expected {
		return &ConflictError{Attempted: expected, Current: rec.Clone()}
	}
	delete(s.records, id)
	return nil
}
