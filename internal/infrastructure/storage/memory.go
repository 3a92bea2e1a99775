package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"EarningsTracker/internal/ports"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local KeyValueStore used for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

var _ ports.KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store on the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock lets tests drive TTL expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{items: map[string]memoryItem{}, now: now}
}

// Get returns a copy of the stored bytes.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

// Set overwrites the key.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = m.item(value, ttl)
	return nil
}

// SetNX writes only if no live value exists.
func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.items[key] = m.item(value, ttl)
	return true, nil
}

// Delete removes the keys; missing keys are ignored.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

// Keys lists live keys with the prefix in lexical order.
func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := m.live(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// live must be called with mu held; it evicts expired entries lazily.
func (m *MemoryStore) live(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (m *MemoryStore) item(value []byte, ttl time.Duration) memoryItem {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	return item
}
