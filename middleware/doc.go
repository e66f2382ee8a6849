// Package middleware exposes HTTP adapters over the authcore admission
// pipeline.
//
// # Guards
//
//   - [Admit] — runs the full pipeline (rate limit, session, CSRF), sets
//     X-RateLimit-* headers, and injects claims into the request context.
//   - [RequireAuth] — rejects anonymous requests after Admit.
//   - [RequireAdmin] — additionally requires the admin role.
//   - [IssueCSRF] — mints anti-forgery tokens on safe methods.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement admission logic itself — all decisions are delegated to
// Engine.Admit.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond what Admit and the claims report.
package middleware
