package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ttlBuffer keeps idle keys alive slightly past the window so a key does
// not vanish between the prune and the cardinality read.
const ttlBuffer = 5 * time.Second

const probeKey = keyPrefix + "health_check"

// RedisBackend implements the sliding-window policy on a shared Redis
// store: a per-identifier sorted set of unique members scored by
// millisecond timestamp.
type RedisBackend struct {
	redis redis.UniversalClient
}

// NewRedisBackend wraps client as a shared-store backend.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{redis: client}
}

// Check runs the sliding-window sequence: prune entries older than the
// window, add a uniquely-identified member at now, read the cardinality,
// refresh the TTL, and roll the member back if the answer is deny. The
// rollback happens after the count read on purpose: a rejected attempt
// occupies the current instant against concurrent callers but must not
// consume window capacity once it has been rolled back.
//
// The sequence is not one atomic transaction; concurrent checks for the
// same identifier can overcount by at most the number of in-flight
// requests, never undercount.
func (b *RedisBackend) Check(ctx context.Context, identifier string, maxRequests int, window time.Duration) (Result, error) {
	now := time.Now()
	key := storeKey(identifier)
	windowStartMs := now.Add(-window).UnixMilli()

	// "(max" excludes the boundary: members scored exactly at the window
	// start are still inside the trailing window.
	if err := b.redis.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStartMs, 10)).Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Unique member so concurrent requests in the same millisecond never
	// collapse into one entry.
	member := uuid.NewString()
	if err := b.redis.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member}).Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	count, err := b.redis.ZCard(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := b.redis.Expire(ctx, key, window+ttlBuffer).Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	allowed := count <= int64(maxRequests)
	if !allowed {
		if err := b.redis.ZRem(ctx, key, member).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetTime: now.Add(window),
	}, nil
}

// Status reports the identifier's standing without consuming a slot. It
// reads the members with scores and counts the in-window ones client-side,
// so a status probe never mutates the set.
func (b *RedisBackend) Status(ctx context.Context, identifier string, maxRequests int, window time.Duration) (Result, error) {
	now := time.Now()
	windowStartMs := now.Add(-window).UnixMilli()

	members, err := b.redis.ZRangeWithScores(ctx, storeKey(identifier), 0, -1).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	count := 0
	for _, m := range members {
		if int64(m.Score) >= windowStartMs {
			count++
		}
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetTime: now.Add(window),
	}, nil
}

// Reset clears all shared state for the identifier.
func (b *RedisBackend) Reset(ctx context.Context, identifier string) error {
	if err := b.redis.Del(ctx, storeKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Probe is a trivial set+delete with a short TTL. The TTL guarantees the
// probe key cannot leak even if the delete is lost.
func (b *RedisBackend) Probe(ctx context.Context) error {
	if err := b.redis.Set(ctx, probeKey, "1", time.Second).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := b.redis.Del(ctx, probeKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
