package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned for every verification failure: malformed
// input, wrong signature, or an expired token. Invalid tokens are an
// expected condition on busy endpoints, so callers branch on this sentinel
// with errors.Is instead of inspecting jwt internals.
var ErrTokenInvalid = errors.New("invalid token")

const (
	// DefaultTTL is the session token lifetime minted at login.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultRefreshWithin is the window before expiry in which
	// RefreshToken mints a replacement instead of returning the token
	// unchanged.
	DefaultRefreshWithin = 24 * time.Hour

	minSecretBytes = 32
)

// Role is the binary authorization level carried in session claims.
type Role string

const (
	// RoleAdmin grants access to admin-only surfaces.
	RoleAdmin Role = "admin"
	// RoleUser is the default customer role.
	RoleUser Role = "user"
)

// User is the identity snapshot the core reads to mint tokens. It is owned
// by the external identity store; only ID, Email, and Role end up in claims.
type User struct {
	ID        string
	Email     string
	Role      Role
	Name      string
	CreatedAt time.Time
}

// SessionClaims is the decoded payload of a session token. Claims are
// immutable once signed; changing any field requires minting a new token.
type SessionClaims struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Config holds token signing parameters. Secret must be at least 32 bytes.
type Config struct {
	Secret        []byte
	TTL           time.Duration
	RefreshWithin time.Duration
	Issuer        string
	Audience      string
}

// Manager signs, verifies, and refreshes HS256 session tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager. Zero durations fall back
// to the package defaults.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshWithin <= 0 {
		cfg.RefreshWithin = DefaultRefreshWithin
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// CreateToken mints a signed session token for user with a fresh TTL.
// Pure function of the user, the secret, and the clock.
func (m *Manager) CreateToken(user User) (string, error) {
	now := m.now()

	claims := SessionClaims{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		IsAdmin: user.Role == RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// VerifyToken checks signature integrity and expiry. A token whose exp
// equals the current second is already expired (strict comparison). Any
// failure maps to ErrTokenInvalid.
func (m *Manager) VerifyToken(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// RefreshToken verifies oldToken and either returns it unchanged (more than
// RefreshWithin of life left — no pointless re-signing) or mints a new token
// with the same identity claims and a fresh TTL. Invalid input returns
// ErrTokenInvalid.
func (m *Manager) RefreshToken(oldToken string) (string, error) {
	claims, err := m.VerifyToken(oldToken)
	if err != nil {
		return "", err
	}

	if claims.ExpiresAt.Time.Sub(m.now()) > m.config.RefreshWithin {
		return oldToken, nil
	}

	return m.CreateToken(User{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
	})
}
