// Package memory provides a process-local session.Store.
package memory

import (
	"context"
	"sync"

	"github.com/mercedmeals/feedclient/session"
)

// Store keeps session keys in memory. It is safe for concurrent use: one
// writer and many readers is the expected pattern.
type Store struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewStore() *Store {
	return &Store{
		vals: make(map[string]string),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vals[key]
	if !ok {
		return "", session.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vals[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.vals, k)
	}
	return nil
}
