package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/bootstrap/config"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

func TestMemoryCacheBasics(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	require.NoError(t, c.Connect(ctx))
	defer c.Close(ctx)

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", "two", time.Hour))
	assert.ErrorIs(t, c.Set(ctx, "c", 3, 0), ErrCacheFull)
	require.NoError(t, c.Set(ctx, "a", 10, 0), "overwrite of an existing key is allowed when full")

	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, c.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1, 0)

	require.NoError(t, c.Set(ctx, "short", "x", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "next", "y", 0), "expired entries make room")
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheBackgroundExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 5*time.Millisecond)
	require.NoError(t, c.Connect(ctx))
	defer c.Close(ctx)

	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://"+mr.Addr(), "test", &testLogger{})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, 0), ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	defer c.Close(ctx)

	require.NoError(t, c.Set(ctx, "k", map[string]any{"level": "run"}, time.Minute))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"level": "run"}, v)

	require.NoError(t, c.Set(ctx, "other", 2, 0))
	mr.Set("unrelated", "keep")
	require.NoError(t, c.Flush(ctx))
	assert.False(t, mr.Exists("test:k"))
	assert.False(t, mr.Exists("test:other"))
	assert.True(t, mr.Exists("unrelated"))

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheInvalidURL(t *testing.T) {
	_, err := NewRedisCache("://nope", "x", &testLogger{})
	assert.ErrorIs(t, err, ErrInvalidRedisURL)
}

func TestAppCaches(t *testing.T) {
	ctx := context.Background()
	caches, err := New(config.CacheSettings{Engine: "memory", MaxItems: 10}, &testLogger{})
	require.NoError(t, err)
	require.NoError(t, caches.Connect(ctx))

	assert.Same(t, caches.Isolated("content"), caches.Isolated("content"))
	assert.NotSame(t, caches.Isolated("content"), caches.Isolated("media"))
	assert.NoError(t, caches.Close(ctx))

	_, err = New(config.CacheSettings{Engine: "memcached"}, &testLogger{})
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestAppCachesRedisEngine(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	caches, err := New(config.CacheSettings{Engine: "redis", RedisURL: "redis://" + mr.Addr()}, &testLogger{})
	require.NoError(t, err)
	require.NoError(t, caches.Connect(ctx))
	defer caches.Close(ctx)

	require.NoError(t, caches.Runtime.Set(ctx, "k", "v", 0))
	assert.True(t, mr.Exists("bootstrap:k"))
}
