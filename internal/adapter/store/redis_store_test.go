package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore_IncrArmsExpiryOnce(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	n, err := s.Incr(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("rate:a"))

	mr.FastForward(30 * time.Second)
	n, err = s.Incr(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, mr.TTL("rate:a"), "later increments must not re-arm the window")

	mr.FastForward(31 * time.Second)
	n, err = s.Incr(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore_GetSetEx(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetEx(ctx, "k", []byte("v"), time.Hour))
	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(time.Hour + time.Second)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_Unreachable(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, err := s.Incr(context.Background(), "rate:a", time.Minute)
	assert.Error(t, err)
	_, _, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Ping(context.Background()))
}
