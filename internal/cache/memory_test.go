package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	value, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	require.NoError(t, store.Set(ctx, "subnet", "203.0.113.", time.Minute))
	value, ok, err = store.Get(ctx, "subnet")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.", value)

	// Unconditional overwrite
	require.NoError(t, store.Set(ctx, "subnet", "198.51.100.", time.Minute))
	value, _, _ = store.Get(ctx, "subnet")
	assert.Equal(t, "198.51.100.", value)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set(ctx, "subnet", "203.0.113.", time.Minute))

	current = current.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, "subnet")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Incr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := store.Incr(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryStore_IncrAfterExpiryRestarts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	_, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	_, err = store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	got, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "missing"))

	_, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "counter"))

	got, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := store.Incr(ctx, "counter", time.Minute)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Incr(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine+1), got)
}
