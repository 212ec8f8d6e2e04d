package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a thread-safe in-memory Store for single-process
// deployments and tests. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	// now is swappable so tests can advance time.
	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	if entry.expired(m.now()) {
		delete(m.data, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(m.now()) {
		m.data[key] = memoryEntry{value: "1", expiresAt: m.expiry(ttl)}
		return 1, nil
	}

	count, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		// Non-numeric value under a counter key; start over.
		m.data[key] = memoryEntry{value: "1", expiresAt: m.expiry(ttl)}
		return 1, nil
	}

	count++
	entry.value = strconv.FormatInt(count, 10)
	m.data[key] = entry
	return count, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
