// Package ratelimit implements admission control per caller-supplied
// identifier (IP, user id, API key) under a maxRequests/window policy.
//
// # Dual backends
//
// The primary backend is a Redis sorted set giving true sliding-window
// semantics shared across process instances. When Redis is unreachable the
// [Limiter] degrades to a process-local fixed-window counter — a weaker but
// explicit guarantee, never silent data loss and never unlimited access.
// Health is tracked by a small state machine (unknown/healthy/degraded)
// whose probe result is cached between re-probes; any runtime failure
// degrades immediately.
//
// # Architecture boundaries
//
// This package owns windowing, health probing, and fallback sweeping. It
// does not know about HTTP: identifier extraction and 429 handling live in
// the middleware package.
//
// # What this package must NOT do
//
//   - Reveal to callers whether the shared or fallback path served a check.
//   - Propagate shared-store failures out of Check/Status/Reset.
//   - Block a caller beyond the configured per-operation timeout.
package ratelimit
