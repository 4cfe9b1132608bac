package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisURLCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisURLCache(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisURLCache(t *testing.T) {
	ctx := context.Background()
	mr, c := setupRedis(t)

	_, ok, err := c.Get(ctx, "presentations/p1/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "presentations/p1/a", "https://signed/a", time.Minute))
	assert.True(t, mr.Exists(urlPrefix+"presentations/p1/a"))

	url, ok, err := c.Get(ctx, "presentations/p1/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://signed/a", url)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "presentations/p1/a")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire with its ttl")

	require.NoError(t, c.Set(ctx, "presentations/p1/b", "https://signed/b", time.Minute))
	require.NoError(t, c.Delete(ctx, "presentations/p1/b"))
	assert.False(t, mr.Exists(urlPrefix+"presentations/p1/b"))
}

func TestNewRedisURLCacheErrors(t *testing.T) {
	_, err := NewRedisURLCache(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisURLCache(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestNopURLCache(t *testing.T) {
	var c NopURLCache
	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
