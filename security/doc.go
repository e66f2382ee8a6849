// Package security holds the cryptographic primitives the rest of the core
// builds on: secure random identifiers, PBKDF2 password hashing with
// per-user salts, and prefixed API keys.
//
// Password hashes are self-describing PHC-style strings so iteration counts
// can be raised later without a migration flag day.
package security
