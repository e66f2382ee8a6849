// Package token implements signed, self-contained session tokens carrying
// user identity and role claims (HS256, symmetric secret).
//
// # Architecture boundaries
//
// This package owns claim layout, signing, verification, and the refresh
// policy. Cookie and header plumbing lives in the session package; it never
// reaches into token internals beyond [Manager] methods.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind (no Redis, no HTTP).
//   - Maintain a revocation list — tokens die only at expiry, by contract.
//   - Leak jwt library errors: every failure is [ErrTokenInvalid].
package token
