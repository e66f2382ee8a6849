package authcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pgclosets/authcore/audit"
	"github.com/pgclosets/authcore/csrf"
	"github.com/pgclosets/authcore/token"
)

func newTestEngine(t *testing.T, sink audit.Sink) *Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := validTestConfig()
	cfg.Audit = audit.Config{Enabled: sink != nil, BufferSize: 16}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAuditSink(sink).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return engine
}

func TestBuildRequiresSecrets(t *testing.T) {
	_, err := New().WithConfig(Config{}).Build()
	require.Error(t, err)
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(validTestConfig())

	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = b.Build()
	require.Error(t, err)
}

func TestAdmitAnonymousGet(t *testing.T) {
	e := newTestEngine(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/products", nil)
	adm, err := e.Admit(context.Background(), r, PolicyGeneral)
	require.NoError(t, err)
	require.Nil(t, adm.Claims)
	require.True(t, adm.RateLimit.Allowed)
}

func TestAdmitRateLimited(t *testing.T) {
	sink := audit.NewChannelSink(16)
	e := newTestEngine(t, sink)

	policy := Policy{Name: "test", Max: 2, Window: time.Minute}
	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := e.Admit(ctx, r, policy)
		require.NoError(t, err)
	}

	adm, err := e.Admit(ctx, r, policy)
	require.ErrorIs(t, err, ErrRateLimited)
	require.False(t, adm.RateLimit.Allowed)
	require.Zero(t, adm.RateLimit.Remaining)
	require.False(t, adm.RateLimit.ResetTime.IsZero())

	select {
	case event := <-sink.Events():
		require.Equal(t, audit.EventRateLimitExceeded, event.EventType)
		require.Equal(t, "203.0.113.7", event.IP)
		require.Equal(t, "test:203.0.113.7", event.Identifier)
	case <-time.After(time.Second):
		t.Fatal("no audit event")
	}

	snap := e.Metrics()
	require.Equal(t, uint64(1), snap.Counters["rate_denied"])
	require.Equal(t, uint64(2), snap.Counters["rate_allowed"])
}

func TestAdmitAuthenticated(t *testing.T) {
	e := newTestEngine(t, nil)

	sess, err := e.CreateSession(context.Background(), token.User{
		ID: "u-9", Email: "u9@example.com", Role: token.RoleUser,
	})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	r.Header.Set("Authorization", "Bearer "+sess.Token)

	adm, err := e.Admit(context.Background(), r, PolicyGeneral)
	require.NoError(t, err)
	require.NotNil(t, adm.Claims)
	require.Equal(t, "u-9", adm.Claims.UserID)

	snap := e.Metrics()
	require.Equal(t, uint64(1), snap.Counters["session_created"])
	require.Equal(t, uint64(1), snap.Counters["token_issued"])
}

func TestAdmitInvalidTokenRejected(t *testing.T) {
	e := newTestEngine(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	r.Header.Set("Authorization", "Bearer garbage")

	_, err := e.Admit(context.Background(), r, PolicyGeneral)
	require.ErrorIs(t, err, ErrTokenInvalid)

	snap := e.Metrics()
	require.Equal(t, uint64(1), snap.Counters["auth_rejected"])
	require.Equal(t, uint64(1), snap.Counters["token_invalid"])
}

func TestAdmitCSRFOnMutatingMethods(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	// POST without a token is rejected.
	r := httptest.NewRequest(http.MethodPost, "/cart", nil)
	_, err := e.Admit(ctx, r, PolicyAPI)
	require.ErrorIs(t, err, ErrCSRFMismatch)

	// Matching token and hash cookie passes.
	tok, err := e.CSRF().GenerateToken()
	require.NoError(t, err)

	r = httptest.NewRequest(http.MethodPost, "/cart", nil)
	r.Header.Set(csrf.HeaderName, tok)
	r.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: e.CSRF().CreateHash(tok)})
	_, err = e.Admit(ctx, r, PolicyAPI)
	require.NoError(t, err)

	snap := e.Metrics()
	require.Equal(t, uint64(1), snap.Counters["csrf_rejected"])
}

func TestRefreshSessionPassthrough(t *testing.T) {
	e := newTestEngine(t, nil)

	sess, err := e.CreateSession(context.Background(), token.User{
		ID: "u-1", Email: "u1@example.com", Role: token.RoleUser,
	})
	require.NoError(t, err)

	// A fresh token is nowhere near the refresh window: same token back.
	r := httptest.NewRequest(http.MethodGet, "/account", nil)
	r.Header.Set("Authorization", "Bearer "+sess.Token)

	refreshed, err := e.RefreshSession(r)
	require.NoError(t, err)
	require.Equal(t, sess.Token, refreshed)

	snap := e.Metrics()
	require.Zero(t, snap.Counters["token_refreshed"])
}

func TestEngineWithoutRedis(t *testing.T) {
	engine, err := New().WithConfig(validTestConfig()).Build()
	require.NoError(t, err)
	defer engine.Close()

	r := httptest.NewRequest(http.MethodGet, "/products", nil)
	adm, err := engine.Admit(context.Background(), r, PolicyGeneral)
	require.NoError(t, err)
	require.True(t, adm.RateLimit.Allowed)
}

func TestEngineCloseIdempotent(t *testing.T) {
	engine, err := New().WithConfig(validTestConfig()).Build()
	require.NoError(t, err)

	engine.Close()
	engine.Close()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect string
	}{
		{
			name:   "remote addr",
			setup:  func(r *http.Request) { r.RemoteAddr = "198.51.100.4:5123" },
			expect: "198.51.100.4",
		},
		{
			name: "forwarded for first hop",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
			},
			expect: "203.0.113.9",
		},
		{
			name:   "real ip",
			setup:  func(r *http.Request) { r.Header.Set("X-Real-IP", "192.0.2.33") },
			expect: "192.0.2.33",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			require.Equal(t, tt.expect, ClientIP(r))
		})
	}
}
