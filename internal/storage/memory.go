package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// NewMemory returns an in-process store. Documents do not survive restarts;
// it exists for tests and throwaway runs.
func NewMemory() Store {
	return &memStore{docs: map[string][]byte{}}
}

type memStore struct {
	mu     sync.Mutex
	docs   map[string][]byte
	closed bool
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memStore) Get(ctx context.Context, key string, out any) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	b, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *memStore) Put(ctx context.Context, key string, v any) error {
	_ = ctx
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.docs[key] = b
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.docs, key)
	return nil
}

func (s *memStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var keys []string
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
