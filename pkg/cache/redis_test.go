package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, prefix string) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rc := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}), prefix)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, srv
}

func TestRedisCachePrefixesKeys(t *testing.T) {
	rc, srv := newTestRedis(t, "histpull")
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "report:r1", payload{Name: "nifty", Count: 2}, 0))

	raw, err := srv.Get("histpull:report:r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"nifty","count":2}`, raw)
	assert.False(t, srv.Exists("report:r1"))

	var got payload
	require.NoError(t, rc.Get(ctx, "report:r1", &got))
	assert.Equal(t, payload{Name: "nifty", Count: 2}, got)
}

func TestRedisCacheWithoutPrefix(t *testing.T) {
	rc, srv := newTestRedis(t, "")

	require.NoError(t, rc.Set(context.Background(), "plain", "value", 0))

	raw, err := srv.Get("plain")
	require.NoError(t, err)
	assert.Equal(t, "value", raw)
}

func TestRedisCacheMissAndExpiry(t *testing.T) {
	rc, srv := newTestRedis(t, "histpull")
	ctx := context.Background()

	var got payload
	assert.ErrorIs(t, rc.Get(ctx, "absent", &got), ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "short", payload{}, time.Minute))
	assert.Equal(t, time.Minute, srv.TTL("histpull:short"))
	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestRedisCacheServerError(t *testing.T) {
	rc, srv := newTestRedis(t, "histpull")
	srv.Close()

	var got payload
	err := rc.Get(context.Background(), "k", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
