// Package authcore is the request-admission core for the pg-closets
// storefront: HS256 session tokens, double-submit CSRF protection, and
// Redis-backed sliding-window rate limiting with an in-process fallback.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Admission, MetricsSnapshot, Policy). The primitives live
// in subpackages — token, csrf, session, ratelimit, security, audit — and
// are usable on their own; the Engine only wires them together.
//
// # What this package must NOT do
//
//   - Store sessions server-side. Tokens are self-contained and stay valid
//     until natural expiry.
//   - Expose the Redis client or store key layout in its public API.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// Admit is the hot path. When the shared store is healthy it costs a
// bounded number of Redis round-trips (the sliding-window commands); when
// degraded it must complete without network I/O at all.
package authcore
