// Package statestore persists small per-pipeline key/value state that must
// survive restarts, such as the export cursor. The interface is deliberately
// narrow so tests can substitute an in-memory stand-in.
package statestore

import "sync"

// Store is a durable string key/value store scoped to one pipeline instance.
type Store interface {
	// GetState returns the stored value and whether the key was present.
	GetState(key string) (string, bool, error)
	// SetState durably stores the value under key, replacing any prior value.
	SetState(key, value string) error
}

// Memory is an in-memory Store for tests.
type Memory struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{m: map[string]string{}} }

// GetState implements Store.
func (s *Memory) GetState(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

// SetState implements Store.
func (s *Memory) SetState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
