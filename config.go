package authcore

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pgclosets/authcore/audit"
	"github.com/pgclosets/authcore/csrf"
	"github.com/pgclosets/authcore/ratelimit"
	"github.com/pgclosets/authcore/session"
	"github.com/pgclosets/authcore/token"
)

// Policy names a rate-limit quota: at most Max requests per identifier
// within Window. The name prefixes the store key so different routes never
// share a bucket.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Built-in policies, tuned for storefront traffic shapes.
var (
	// PolicyAuth guards login and signup endpoints.
	PolicyAuth = Policy{Name: "auth", Max: 5, Window: 15 * time.Minute}
	// PolicyAPI guards JSON API routes.
	PolicyAPI = Policy{Name: "api", Max: 60, Window: time.Minute}
	// PolicyForms guards contact and quote form submissions.
	PolicyForms = Policy{Name: "forms", Max: 5, Window: time.Minute}
	// PolicySearch guards product search.
	PolicySearch = Policy{Name: "search", Max: 20, Window: time.Minute}
	// PolicyGeneral is the catch-all for page traffic.
	PolicyGeneral = Policy{Name: "general", Max: 100, Window: 15 * time.Minute}
)

// TokenConfig tunes session token lifetimes and claims.
type TokenConfig struct {
	TTL           time.Duration
	RefreshWithin time.Duration
	Issuer        string
	Audience      string
}

// CSRFConfig tunes the anti-forgery cookie.
type CSRFConfig struct {
	CookieMaxAge time.Duration
}

// SessionConfig tunes the session cookie.
type SessionConfig struct {
	CookieMaxAge time.Duration
}

// RateLimitConfig tunes the limiter's availability machinery.
type RateLimitConfig struct {
	ProbeInterval time.Duration
	OpTimeout     time.Duration
	SweepInterval time.Duration
}

// MetricsConfig controls counter collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the top-level engine configuration. Zero sub-config values fall
// back to the package defaults; secrets have no default and must be set.
type Config struct {
	// JWTSecret signs session tokens. At least 32 bytes.
	JWTSecret []byte
	// CSRFSecret keys the anti-forgery HMAC. At least 16 bytes.
	CSRFSecret []byte
	// Production turns on Secure cookies.
	Production bool
	// RedisAddr, when set and no client is supplied, is dialed during Build.
	RedisAddr string

	Token     TokenConfig
	CSRF      CSRFConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Audit     audit.Config
	Metrics   MetricsConfig
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:           token.DefaultTTL,
			RefreshWithin: token.DefaultRefreshWithin,
			Issuer:        "pg-closets",
			Audience:      "pg-closets-users",
		},
		CSRF:    CSRFConfig{CookieMaxAge: csrf.DefaultMaxAge},
		Session: SessionConfig{CookieMaxAge: session.DefaultCookieMaxAge},
		RateLimit: RateLimitConfig{
			ProbeInterval: ratelimit.DefaultProbeInterval,
			OpTimeout:     ratelimit.DefaultOpTimeout,
			SweepInterval: ratelimit.DefaultSweepInterval,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks secret strength. Sub-config durations are validated by
// the subpackage constructors.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("JWTSecret must be at least 32 bytes")
	}
	if len(c.CSRFSecret) < 16 {
		return errors.New("CSRFSecret must be at least 16 bytes")
	}
	return nil
}

// FromEnv builds a Config from the process environment, loading .env first
// when present. Recognized variables: JWT_SECRET, CSRF_SECRET, REDIS_ADDR,
// APP_ENV (Production when "production").
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	cfg.JWTSecret = []byte(os.Getenv("JWT_SECRET"))
	cfg.CSRFSecret = []byte(os.Getenv("CSRF_SECRET"))
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.Production = os.Getenv("APP_ENV") == "production"

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
