package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

var _ pkgredis.IdempotencyStore = (*MemoryIdempotencyStore)(nil)

// MemoryIdempotencyStore keeps idempotency records in process. The devserver uses it
// when no redis endpoint is configured. Misses report redis.Nil like the redis store.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok {
		return "", redis.Nil
	}
	return entry.value, nil
}

func (m *MemoryIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, ttl)
	return nil
}

func (m *MemoryIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

// put stores value under key. Callers hold mu.
func (m *MemoryIdempotencyStore) put(key string, value any, ttl time.Duration) {
	entry := memoryEntry{value: fmt.Sprint(value)}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries[key] = entry
}

// live returns the unexpired entry for key. Callers hold mu.
func (m *MemoryIdempotencyStore) live(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *MemoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, id)
}

func (m *MemoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}
