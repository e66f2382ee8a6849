// Package csrf implements double-submit anti-forgery tokens: a random
// client-visible token paired with a server-keyed HMAC stored in an
// HttpOnly cookie. Validation is a constant-time comparison, guarding
// against timing side channels as well as plain forgery.
package csrf
