package authcore

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pgclosets/authcore/audit"
	"github.com/pgclosets/authcore/csrf"
	"github.com/pgclosets/authcore/internal/metrics"
	"github.com/pgclosets/authcore/ratelimit"
	"github.com/pgclosets/authcore/session"
	"github.com/pgclosets/authcore/token"
)

// Engine is the assembled admission pipeline. Build one with a Builder and
// call Close when done.
type Engine struct {
	config   Config
	log      zerolog.Logger
	tokens   *token.Manager
	guard    *csrf.Guard
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	stats    *metrics.Metrics
	audit    *audit.Dispatcher

	redis     redis.UniversalClient
	ownsRedis bool
	closeOnce sync.Once
}

// Subsystem accessors for callers that need more than Admit.

func (e *Engine) Tokens() *token.Manager        { return e.tokens }
func (e *Engine) CSRF() *csrf.Guard             { return e.guard }
func (e *Engine) Sessions() *session.Manager    { return e.sessions }
func (e *Engine) RateLimit() *ratelimit.Limiter { return e.limiter }

// Admission is the outcome of a successful or rejected Admit call. Claims
// is nil for anonymous requests. RateLimit is populated even on rejection
// so callers can set response headers.
type Admission struct {
	Claims    *token.SessionClaims
	RateLimit ratelimit.Result
}

// Admit runs the admission pipeline for one request: rate limit by client
// IP under the policy, decode the session if credentials are present, and
// verify the CSRF token on mutating methods. Anonymous requests pass; a
// present-but-invalid token does not.
func (e *Engine) Admit(ctx context.Context, r *http.Request, policy Policy) (Admission, error) {
	start := time.Now()
	defer func() {
		e.stats.Observe(metrics.AdmitLatency, time.Since(start))
	}()

	ip := ClientIP(r)
	identifier := policy.Name + ":" + ip

	adm := Admission{RateLimit: e.limiter.Check(ctx, identifier, policy.Max, policy.Window)}
	if !adm.RateLimit.Allowed {
		e.stats.Inc(metrics.RateDenied)
		e.audit.Emit(ctx, audit.Event{
			Timestamp:  time.Now(),
			EventType:  audit.EventRateLimitExceeded,
			Identifier: identifier,
			IP:         ip,
			Metadata:   map[string]string{"path": r.URL.Path},
		})
		return adm, ErrRateLimited
	}
	e.stats.Inc(metrics.RateAllowed)

	claims, err := e.sessions.GetSession(r)
	switch {
	case err == nil:
		adm.Claims = claims
	case errors.Is(err, session.ErrUnauthenticated):
		// No credentials at all: anonymous request.
	default:
		e.stats.Inc(metrics.TokenInvalid)
		e.stats.Inc(metrics.AuthRejected)
		e.audit.Emit(ctx, audit.Event{
			Timestamp: time.Now(),
			EventType: audit.EventAuthRejected,
			IP:        ip,
			Error:     err.Error(),
		})
		return adm, err
	}

	if isMutating(r.Method) {
		if err := e.guard.ValidateRequest(r); err != nil {
			e.stats.Inc(metrics.CSRFRejected)
			e.audit.Emit(ctx, audit.Event{
				Timestamp: time.Now(),
				EventType: audit.EventCSRFRejected,
				IP:        ip,
				Metadata:  map[string]string{"path": r.URL.Path, "method": r.Method},
			})
			return adm, err
		}
	}

	return adm, nil
}

// CreateSession mints a session for an authenticated user and records the
// event. The caller has already verified credentials.
func (e *Engine) CreateSession(ctx context.Context, user token.User) (*session.Session, error) {
	sess, err := e.sessions.CreateSession(user)
	if err != nil {
		return nil, err
	}

	e.stats.Inc(metrics.TokenIssued)
	e.stats.Inc(metrics.SessionCreated)
	e.audit.Emit(ctx, audit.Event{
		Timestamp: time.Now(),
		EventType: audit.EventSessionCreated,
		UserID:    user.ID,
		Success:   true,
	})
	return sess, nil
}

// RefreshSession returns a token for the request's session, minting a new
// one when the current token is inside the refresh window.
func (e *Engine) RefreshSession(r *http.Request) (string, error) {
	current, ok := session.TokenFromRequest(r)
	if !ok {
		return "", ErrUnauthenticated
	}

	refreshed, err := e.tokens.RefreshToken(current)
	if err != nil {
		e.stats.Inc(metrics.TokenInvalid)
		return "", err
	}
	if refreshed != current {
		e.stats.Inc(metrics.TokenRefreshed)
	}
	return refreshed, nil
}

// Metrics returns a point-in-time snapshot of the engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return snapshotFrom(e.stats.SnapshotAll())
}

// Close stops background goroutines and closes the Redis client when the
// engine dialed it itself. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.limiter.Close()
		e.audit.Close()
		if e.ownsRedis && e.redis != nil {
			_ = e.redis.Close()
		}
	})
}

// ClientIP extracts the originating client address: first X-Forwarded-For
// hop, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
