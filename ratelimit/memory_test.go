package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	wantAllowed := []bool{true, true, true, false, false}
	wantRemaining := []int{2, 1, 0, 0, 0}

	for i := range wantAllowed {
		res, err := b.Check(ctx, "ip:1.2.3.4", 3, 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, wantAllowed[i], res.Allowed, "call %d", i+1)
		require.Equal(t, wantRemaining[i], res.Remaining, "call %d", i+1)
	}
}

func TestMemoryWindowExpiryOpensNewWindow(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	const window = 100 * time.Millisecond

	for i := 0; i < 2; i++ {
		res, err := b.Check(ctx, "ip:x", 2, window)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := b.Check(ctx, "ip:x", 2, window)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(window + 50*time.Millisecond)

	res, err = b.Check(ctx, "ip:x", 2, window)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 1, res.Remaining)
}

func TestMemoryStatusDoesNotConsume(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	_, err := b.Check(ctx, "ip:s", 3, 10*time.Second)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		res, err := b.Status(ctx, "ip:s", 3, 10*time.Second)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2, res.Remaining)
	}

	res, err := b.Status(ctx, "ip:unknown", 3, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 3, res.Remaining)
}

func TestMemoryReset(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Check(ctx, "ip:r", 3, 10*time.Second)
		require.NoError(t, err)
	}

	require.NoError(t, b.Reset(ctx, "ip:r"))

	res, err := b.Check(ctx, "ip:r", 3, 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 2, res.Remaining)
}

func TestMemorySweep(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	_, err := b.Check(ctx, "ip:old", 3, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = b.Check(ctx, "ip:new", 3, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())

	time.Sleep(100 * time.Millisecond)

	require.Equal(t, 1, b.Sweep(time.Now()))
	require.Equal(t, 1, b.Len())
}

func TestMemoryConcurrentChecks(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	const workers = 20
	allowed := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := b.Check(ctx, "ip:conc", 5, 10*time.Second)
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	require.Equal(t, 5, count)
}
