package settings

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map. It is used in tests
// and as a fallback when no database is configured. All writes are lost
// when the process stops.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[string]string
}

// NewMemoryStore creates an empty in-memory settings store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fields: make(map[string]string)}
}

// Load returns a copy of the full settings record
func (s *MemoryStore) Load(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out, nil
}

// Get returns one field's value, "" if absent
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[key], nil
}

// Save merges the given fields into the record
func (s *MemoryStore) Save(ctx context.Context, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range fields {
		s.fields[k] = v
	}
	return nil
}

// Clear removes the named keys
func (s *MemoryStore) Clear(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.fields, k)
	}
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
