package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T) (*RedisBackend, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisBackend(rdb), rdb, mr
}

func TestRedisSlidingWindowScenario(t *testing.T) {
	b, _, _ := newRedisBackend(t)
	ctx := context.Background()

	// check("ip:1.2.3.4", 3, 10s) four times in quick succession.
	wantAllowed := []bool{true, true, true, false}
	wantRemaining := []int{2, 1, 0, 0}

	for i := range wantAllowed {
		res, err := b.Check(ctx, "ip:1.2.3.4", 3, 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, wantAllowed[i], res.Allowed, "call %d", i+1)
		require.Equal(t, wantRemaining[i], res.Remaining, "call %d", i+1)
		require.False(t, res.ResetTime.IsZero())
	}
}

func TestRedisWindowAdvanceAllowsAgain(t *testing.T) {
	b, _, _ := newRedisBackend(t)
	ctx := context.Background()

	const window = 300 * time.Millisecond

	for i := 0; i < 3; i++ {
		res, err := b.Check(ctx, "ip:9.9.9.9", 3, window)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := b.Check(ctx, "ip:9.9.9.9", 3, window)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(window + 100*time.Millisecond)

	res, err = b.Check(ctx, "ip:9.9.9.9", 3, window)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestRedisRejectedCallIsRolledBack(t *testing.T) {
	b, rdb, _ := newRedisBackend(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := b.Check(ctx, "user:42", 2, 10*time.Second)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := b.Check(ctx, "user:42", 2, 10*time.Second)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// The denied member must not remain in the set.
	count, err := rdb.ZCard(ctx, "rate_limit:user:42").Result()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestRedisKeyGetsTTL(t *testing.T) {
	b, rdb, _ := newRedisBackend(t)
	ctx := context.Background()

	_, err := b.Check(ctx, "ip:ttl", 5, 10*time.Second)
	require.NoError(t, err)

	ttl, err := rdb.TTL(ctx, "rate_limit:ip:ttl").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 10*time.Second)
	require.LessOrEqual(t, ttl, 10*time.Second+ttlBuffer)
}

func TestRedisStatusDoesNotConsume(t *testing.T) {
	b, rdb, _ := newRedisBackend(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Check(ctx, "api:key-1", 3, 10*time.Second)
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		res, err := b.Status(ctx, "api:key-1", 3, 10*time.Second)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 1, res.Remaining)
	}

	count, err := rdb.ZCard(ctx, "rate_limit:api:key-1").Result()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestRedisReset(t *testing.T) {
	b, _, _ := newRedisBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Check(ctx, "ip:reset", 3, 10*time.Second)
		require.NoError(t, err)
	}
	res, err := b.Check(ctx, "ip:reset", 3, 10*time.Second)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, b.Reset(ctx, "ip:reset"))

	res, err = b.Check(ctx, "ip:reset", 3, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 2, res.Remaining)
}

func TestRedisProbe(t *testing.T) {
	b, _, mr := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Probe(ctx))

	mr.SetError("boom")
	require.ErrorIs(t, b.Probe(ctx), ErrBackendUnavailable)
}

func TestRedisCheckWrapsFailures(t *testing.T) {
	b, _, mr := newRedisBackend(t)
	ctx := context.Background()

	mr.SetError("boom")
	_, err := b.Check(ctx, "ip:down", 3, time.Second)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}
