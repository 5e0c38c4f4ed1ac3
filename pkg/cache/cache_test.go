package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

func TestNewLRU_RejectsBadSize(t *testing.T) {
	_, err := NewLRU[int](0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewLRU[int](-5)
	require.Error(t, err)
}

func TestLRU_GetSetDelete(t *testing.T) {
	c, err := NewLRU[string](4)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	created, err := c.Set("a", "alpha")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("a", "alpha2")
	require.NoError(t, err)
	assert.False(t, created, "second set of same key updates, not creates")

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "alpha2", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	deleted, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLRU_RejectsEmptyKey(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, err = c.Set("", 1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = c.Delete("")
	require.Error(t, err)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evictedKeys []string
	c, err := NewLRU[int](3, WithEvictionCallback[int](func(key string, _ int) {
		evictedKeys = append(evictedKeys, key)
	}))
	require.NoError(t, err)

	for i, key := range []string{"a", "b", "c"} {
		_, err := c.Set(key, i)
		require.NoError(t, err)
	}

	// Touch "a" so "b" becomes the oldest.
	_, ok := c.Get("a")
	require.True(t, ok)

	_, err = c.Set("d", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, evictedKeys)
	assert.Equal(t, 3, c.Size())

	_, ok = c.Get("b")
	assert.False(t, ok, "evicted key must be gone")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %s should survive", key)
	}
}

func TestLRU_KeysInRecencyOrder(t *testing.T) {
	c, err := NewLRU[int](3)
	require.NoError(t, err)

	for i, key := range []string{"a", "b", "c"} {
		_, err := c.Set(key, i)
		require.NoError(t, err)
	}
	_, _ = c.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestLRU_Clear(t *testing.T) {
	evicted := 0
	c, err := NewLRU[int](8, WithEvictionCallback[int](func(string, int) { evicted++ }))
	require.NoError(t, err)

	for i, key := range []string{"a", "b", "c"} {
		_, err := c.Set(key, i)
		require.NoError(t, err)
	}

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, 3, evicted)
}

func TestLRU_Stats(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Set("c", 3) // evicts "a"
	_, _ = c.Get("b")    // hit
	_, _ = c.Get("a")    // miss
	_, _ = c.Delete("b")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(3), stats.Sets())
	assert.Equal(t, int64(1), stats.Deletes())
	assert.Equal(t, int64(1), stats.Evictions())
	assert.Equal(t, int64(1), stats.CurrentSize())
	assert.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
}

func TestNewTTL_RejectsBadDurations(t *testing.T) {
	ctx := context.Background()

	_, err := NewTTL[int](ctx, 0, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewTTL[int](ctx, time.Second, 0)
	require.Error(t, err)
}

func TestTTL_ExpiresLazily(t *testing.T) {
	c, err := NewTTL[string](context.Background(), 20*time.Millisecond, time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Set("k", "v")
	require.NoError(t, err)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	time.Sleep(40 * time.Millisecond)

	// The sweep interval is an hour, so only the lazy path can expire it.
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions())
	assert.Equal(t, 0, c.Size())
}

func TestTTL_BackgroundSweep(t *testing.T) {
	c, err := NewTTL[int](context.Background(), 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Set("k", 1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond, "sweep should remove the expired entry without a Get")
}

func TestTTL_SetRefreshesExpiry(t *testing.T) {
	c, err := NewTTL[int](context.Background(), 50*time.Millisecond, time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Set("k", 1)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	created, err := c.Set("k", 2)
	require.NoError(t, err)
	assert.False(t, created)

	time.Sleep(30 * time.Millisecond)

	// 60ms after the first set but only 30ms after the refresh.
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestTTL_CloseStopsSweep(t *testing.T) {
	c, err := NewTTL[int](context.Background(), time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	// Closing twice must not panic on the closed channel.
	require.NoError(t, c.Close())
}

func TestTTL_ContextCancelStopsSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewTTL[int](ctx, time.Minute, 10*time.Millisecond)
	require.NoError(t, err)

	cancel()
	require.NoError(t, c.Close(), "close after context cancel must not hang")
}

func TestWithMetrics_RegistersCollectors(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	c, err := NewLRU[int](2, WithMetrics[int](registry, "test_cache"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["intellilab_cache_hits_total"])
	assert.True(t, names["intellilab_cache_misses_total"])
	assert.True(t, names["intellilab_cache_size"])
}

func TestWithMetrics_DuplicateNameFails(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	_, err := NewLRU[int](2, WithMetrics[int](registry, "dup_cache"))
	require.NoError(t, err)

	_, err = NewLRU[int](2, WithMetrics[int](registry, "dup_cache"))
	require.Error(t, err, "second registration under the same cache name must fail")
}
