package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable indicates the shared store is unreachable. The
// Limiter recovers from it locally; it never reaches callers of Check.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// keyPrefix namespaces every limiter key in the shared store.
const keyPrefix = "rate_limit:"

func storeKey(identifier string) string {
	return keyPrefix + identifier
}

// Result is the outcome of an admission query.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Backend answers per-identifier admission queries under a
// maxRequests/window policy.
//
// Check consumes a slot; Status is its read-only equivalent and must never
// insert or increment. Probe is a cheap health check against the backing
// store (a no-op for process-local backends).
type Backend interface {
	Check(ctx context.Context, identifier string, maxRequests int, window time.Duration) (Result, error)
	Status(ctx context.Context, identifier string, maxRequests int, window time.Duration) (Result, error)
	Reset(ctx context.Context, identifier string) error
	Probe(ctx context.Context) error
}
