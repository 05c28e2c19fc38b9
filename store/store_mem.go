package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-process implementation, for tests and single-node
// deployments without redis. Claims expire lazily on the next SetNX.
type MemStore struct {
	mu     sync.Mutex
	data   map[string]string
	expiry map[string]time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data:   make(map[string]string),
		expiry: make(map[string]time.Time),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.expiry[key]; ok && time.Now().After(exp) {
		delete(s.data, key)
		delete(s.expiry, key)
		return "", nil
	}
	return s.data[key], nil
}

func (s *MemStore) Set(ctx context.Context, key string, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	delete(s.expiry, key)
	return nil
}

func (s *MemStore) SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.expiry[key]; ok && time.Now().After(exp) {
		delete(s.data, key)
		delete(s.expiry, key)
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = val
	if ttl != 0 {
		s.expiry[key] = time.Now().Add(ttl)
	}
	return true, nil
}
