package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryIdempotencyStore is the in-process fallback used when redis is not
// configured, and in tests.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		keys: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (m *MemoryIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiry, ok := m.keys[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.keys[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
