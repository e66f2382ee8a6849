package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pgclosets/authcore/token"
)

var (
	// ErrUnauthenticated means no valid session accompanied the request.
	// Maps to 401 at the HTTP layer.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the session is valid but the role is
	// insufficient. Maps to 403.
	ErrForbidden = errors.New("forbidden")
)

const (
	// CookieName is the session token cookie.
	CookieName = "session"

	// DefaultCookieMaxAge matches the token lifetime.
	DefaultCookieMaxAge = 7 * 24 * time.Hour

	bearerPrefix = "Bearer "
)

// Config controls cookie posture. SecureCookies should be true in
// production.
type Config struct {
	SecureCookies bool
	CookieMaxAge  time.Duration
}

// Manager is the thin orchestration layer between HTTP requests and the
// token manager: it extracts tokens from headers/cookies and attaches them
// on the way out. It holds no per-session server state — logout clears the
// client cookie only, and a stolen token stays valid until natural expiry.
type Manager struct {
	tokens *token.Manager
	config Config
}

// Session pairs a freshly minted token with its decoded claims.
type Session struct {
	Token  string
	Claims *token.SessionClaims
}

// NewManager builds a Manager over tokens.
func NewManager(tokens *token.Manager, cfg Config) *Manager {
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = DefaultCookieMaxAge
	}
	return &Manager{tokens: tokens, config: cfg}
}

// CreateSession mints a session token for user.
func (m *Manager) CreateSession(user token.User) (*Session, error) {
	tok, err := m.tokens.CreateToken(user)
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.VerifyToken(tok)
	if err != nil {
		return nil, err
	}

	return &Session{Token: tok, Claims: claims}, nil
}

// TokenFromRequest extracts the session token: the Authorization bearer
// header takes precedence over the session cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if value := r.Header.Get("Authorization"); strings.HasPrefix(value, bearerPrefix) {
		if tok := value[len(bearerPrefix):]; tok != "" {
			return tok, true
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// GetSession extracts and verifies the request's session token. A request
// without credentials returns ErrUnauthenticated; a present but invalid
// token returns token.ErrTokenInvalid.
func (m *Manager) GetSession(r *http.Request) (*token.SessionClaims, error) {
	tok, ok := TokenFromRequest(r)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return m.tokens.VerifyToken(tok)
}

// RequireAuth returns the session claims or ErrUnauthenticated for any
// missing or invalid session.
func (m *Manager) RequireAuth(r *http.Request) (*token.SessionClaims, error) {
	claims, err := m.GetSession(r)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// RequireAdmin is RequireAuth plus an admin check: a valid non-admin
// session returns ErrForbidden.
func (m *Manager) RequireAdmin(r *http.Request) (*token.SessionClaims, error) {
	claims, err := m.RequireAuth(r)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin {
		return nil, ErrForbidden
	}
	return claims, nil
}

// SetSessionCookie attaches the session token as an HttpOnly,
// SameSite=Strict cookie.
func (m *Manager) SetSessionCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(m.config.CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie. This is the whole logout:
// there is no server-side revocation list.
func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
