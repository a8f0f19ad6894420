package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)

	ok, err := Acquire(ctx, rdb, "checkout", "s1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Acquire(ctx, rdb, "checkout", "s1")
	require.NoError(t, err)
	require.False(t, ok, "second acquire while pending must be refused")

	ok, err = Acquire(ctx, rdb, "checkout", "s2")
	require.NoError(t, err)
	require.True(t, ok, "other sessions are independent")

	require.NoError(t, Release(ctx, rdb, "checkout", "s1"))
	ok, err = Acquire(ctx, rdb, "checkout", "s1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(TTLInFlight + time.Second)
	ok, err = Acquire(ctx, rdb, "checkout", "s2")
	require.NoError(t, err)
	require.True(t, ok, "stale guard expires")
}

func TestMarkOnce(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupRedis(t)

	first, err := MarkOnce(ctx, rdb, "dedup:x:1", time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	again, err := MarkOnce(ctx, rdb, "dedup:x:1", time.Minute)
	require.NoError(t, err)
	require.False(t, again)

	require.True(t, mr.Exists("dedup:x:1"))
}
