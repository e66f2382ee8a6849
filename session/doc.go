// Package session translates between HTTP requests and session tokens:
// extraction (bearer header takes precedence over the cookie),
// verification delegation, and session-cookie lifecycle.
//
// # Architecture boundaries
//
// This package owns request/response plumbing only. Signing and
// verification belong to the token package; it never inspects token bytes
// itself.
//
// # What this package must NOT do
//
//   - Keep server-side session state (stateless by contract; logout is
//     cookie clearing, revocation is an explicit non-goal).
//   - Perform I/O beyond reading the request and setting cookies.
package session
