package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// ErrMismatch is the request-level rejection for a missing or invalid CSRF
// token. Equivalent to Forbidden at the HTTP layer.
var ErrMismatch = errors.New("csrf token mismatch")

const (
	// CookieName is the cookie holding the server-side HMAC of the token.
	CookieName = "csrf-token"
	// HeaderName is where clients echo the raw token on mutating requests.
	HeaderName = "X-CSRF-Token"
	// FormField is the fallback form field for the raw token.
	FormField = "csrf_token"

	// DefaultMaxAge is the lifetime of the hash cookie.
	DefaultMaxAge = 24 * time.Hour

	tokenBytes     = 32
	minSecretBytes = 16
)

// Config holds guard parameters. Secret must be at least 16 bytes. Secure
// controls the cookie's Secure flag (off only outside production).
type Config struct {
	Secret []byte
	Secure bool
	MaxAge time.Duration
}

// Guard issues anti-forgery tokens and validates them against a server-held
// HMAC. The raw token goes to the caller (form/header); only the hash is
// stored in a cookie the client echoes but cannot forge.
type Guard struct {
	config Config
}

// NewGuard validates cfg and returns a Guard.
func NewGuard(cfg Config) (*Guard, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("csrf secret must be at least 16 bytes")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}

	return &Guard{config: cfg}, nil
}

// GenerateToken returns a fresh 32-byte random token, hex-encoded.
func (g *Guard) GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateHash returns the hex-encoded HMAC-SHA256 of token under the guard
// secret.
func (g *Guard) CreateHash(token string) string {
	mac := hmac.New(sha256.New, g.config.Secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate recomputes the HMAC of token and compares it to hash in constant
// time. Length differences fail without leaking position information.
func (g *Guard) Validate(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return hmac.Equal([]byte(g.CreateHash(token)), []byte(hash))
}

// IssueCookie stores the HMAC of token as the csrf-token cookie (HttpOnly,
// SameSite=Strict, Secure per config). The raw token is returned to the
// caller out of band; the two halves are never client-readable together.
func (g *Guard) IssueCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    g.CreateHash(token),
		Path:     "/",
		MaxAge:   int(g.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the csrf-token cookie.
func (g *Guard) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.config.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest extracts the raw token a client presented: header first,
// then the form field.
func TokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(HeaderName); token != "" {
		return token
	}
	if err := r.ParseForm(); err == nil {
		return r.FormValue(FormField)
	}
	return ""
}

// ValidateRequest checks the presented token against the hash cookie.
// Returns ErrMismatch for anything short of a constant-time match.
func (g *Guard) ValidateRequest(r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ErrMismatch
	}

	if !g.Validate(TokenFromRequest(r), cookie.Value) {
		return ErrMismatch
	}
	return nil
}
