package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	authcore "github.com/pgclosets/authcore"
	"github.com/pgclosets/authcore/csrf"
	"github.com/pgclosets/authcore/token"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the session claims Admit attached, if any.
func ClaimsFromContext(ctx context.Context) (*token.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.SessionClaims)
	return claims, ok
}

// Admit runs the engine's admission pipeline for every request: rate limit
// headers are always set, rejected requests are answered directly, and
// decoded claims are injected into the request context for downstream
// handlers.
func Admit(engine *authcore.Engine, policy authcore.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			adm, err := engine.Admit(r.Context(), r, policy)
			setRateLimitHeaders(w, policy, adm)

			switch {
			case err == nil:
			case errors.Is(err, authcore.ErrRateLimited):
				retryAfter := int(time.Until(adm.RateLimit.ResetTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			case errors.Is(err, authcore.ErrTokenInvalid):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case errors.Is(err, authcore.ErrCSRFMismatch):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			default:
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if adm.Claims != nil {
				ctx := context.WithValue(r.Context(), claimsContextKey{}, adm.Claims)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests whose context carries no session claims.
// Chain it after Admit.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects unauthenticated requests with 401 and authenticated
// non-admin requests with 403. Chain it after Admit.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IssueCSRF mints a fresh anti-forgery token on safe methods: the HMAC goes
// into the cookie, the raw token into the X-CSRF-Token response header for
// the page to echo back on its next mutating request.
func IssueCSRF(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				if tok, err := engine.CSRF().GenerateToken(); err == nil {
					engine.CSRF().IssueCookie(w, tok)
					w.Header().Set(csrf.HeaderName, tok)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, policy authcore.Policy, adm authcore.Admission) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(policy.Max))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(adm.RateLimit.Remaining))
	if !adm.RateLimit.ResetTime.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(adm.RateLimit.ResetTime.Unix(), 10))
	}
}
