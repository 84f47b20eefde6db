package cache

import (
	"context"
	"testing"
	"time"

	"recipe-autofind/internal/infrastructure/config"
	"recipe-autofind/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(maxSize int, ttl time.Duration) *CacheManager {
	return NewManager(config.CacheConfig{Enabled: true, MaxSize: maxSize, TTL: ttl})
}

func TestManagerGetSet(t *testing.T) {
	ctx := context.Background()
	m := newManager(10, time.Minute)
	defer m.Close()

	_, err := m.Get(ctx, "job-1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "job-1", `{"status":"completed"}`))
	val, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"completed"}`, val)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestManagerExpiresEntries(t *testing.T) {
	ctx := context.Background()
	m := newManager(10, 10*time.Millisecond)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "job-1", "v"))
	time.Sleep(20 * time.Millisecond)
	_, err := m.Get(ctx, "job-1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManagerEvictsLeastUsed(t *testing.T) {
	ctx := context.Background()
	m := newManager(2, time.Minute)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", "3"))
	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, common.ErrCacheMiss, "unused entry is evicted first")
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)

	require.NoError(t, m.Set(ctx, "a", "updated"), "overwriting an existing key needs no eviction")
}

func TestDisabledCacheIsSafe(t *testing.T) {
	ctx := context.Background()
	store, err := New(config.CacheConfig{Enabled: false}, nil, "autofind")
	require.NoError(t, err)

	assert.NoError(t, store.Set(ctx, "k", "v"))
	_, err = store.Get(ctx, "k")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(config.CacheConfig{Enabled: true, Backend: "memcached"}, nil, "autofind")
	assert.Error(t, err)

	_, err = New(config.CacheConfig{Enabled: true, Backend: "redis"}, nil, "autofind")
	assert.Error(t, err)
}
