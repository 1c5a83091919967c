// Package storage provides pkce.Storage implementations for Go hosts: an
// in-memory store for ephemeral sessions and tests, and a file-backed store
// that survives process restarts the way browser local storage survives
// page reloads.
package storage

import "sync"

// MemoryStore is a thread-safe in-memory key-value store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key, last-write-wins.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
