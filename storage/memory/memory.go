// Package memory provides a thread-safe in-memory implementation of
// storage.KeyValue. Suitable for testing and ephemeral sessions.
package memory

import (
	"context"
	"sync"

	"github.com/tripmate/authkit/storage"
)

// Store is a thread-safe in-memory implementation of storage.KeyValue.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ storage.KeyValue = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries. Used by tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
