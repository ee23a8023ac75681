package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Cache used when no Redis address is configured and
// throughout the tests. Expired entries are dropped lazily on read and
// compacted opportunistically on write.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Compact expired entries while we hold the lock anyway.
	for k, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, k)
		}
	}

	m.items[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}
