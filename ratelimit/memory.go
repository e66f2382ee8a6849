package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	count     int
	resetTime time.Time
}

// MemoryBackend is the process-local fallback: a fixed-window counter per
// identifier. Weaker than the shared sliding window (fixed bucket, not
// shared across instances) but always available. Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

// NewMemoryBackend returns an empty fallback store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*memoryRecord)}
}

// Check applies the fixed-window policy: first hit (or an expired window)
// opens a new window at count 1; a full window denies; otherwise the count
// increments. Never returns an error.
func (b *MemoryBackend) Check(_ context.Context, identifier string, maxRequests int, window time.Duration) (Result, error) {
	now := time.Now()
	key := storeKey(identifier)

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[key]
	if !ok || now.After(rec.resetTime) {
		rec = &memoryRecord{count: 1, resetTime: now.Add(window)}
		b.records[key] = rec
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetTime: rec.resetTime}, nil
	}

	if rec.count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetTime: rec.resetTime}, nil
	}

	rec.count++
	return Result{Allowed: true, Remaining: maxRequests - rec.count, ResetTime: rec.resetTime}, nil
}

// Status reports standing without incrementing.
func (b *MemoryBackend) Status(_ context.Context, identifier string, maxRequests int, window time.Duration) (Result, error) {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[storeKey(identifier)]
	if !ok || now.After(rec.resetTime) {
		return Result{Allowed: true, Remaining: maxRequests, ResetTime: now.Add(window)}, nil
	}

	remaining := maxRequests - rec.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{Allowed: remaining > 0, Remaining: remaining, ResetTime: rec.resetTime}, nil
}

// Reset drops the identifier's record.
func (b *MemoryBackend) Reset(_ context.Context, identifier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, storeKey(identifier))
	return nil
}

// Probe always succeeds; the fallback cannot be unavailable.
func (b *MemoryBackend) Probe(context.Context) error {
	return nil
}

// Sweep removes records whose window has passed and returns how many were
// dropped. Bounds memory growth from an unbounded identifier population.
func (b *MemoryBackend) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, rec := range b.records {
		if now.After(rec.resetTime) {
			delete(b.records, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live records.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.records)
}
