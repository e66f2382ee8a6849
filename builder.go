package authcore

import (
	"context"
	"errors"
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

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	log    zerolog.Logger
	logSet bool
	sink   audit.Sink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the shared rate-limit store. Without one (and without
// Config.RedisAddr) the engine runs on the in-process fallback only.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	b.logSet = true
	return b
}

// WithAuditSink sets the destination for audit events. Events are only
// emitted when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, wires the subsystems together, and
// returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if !b.logSet {
		log = zerolog.Nop()
	}

	client := b.redis
	ownsRedis := false
	if client == nil && cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ownsRedis = true
	}

	tokens, err := token.NewManager(token.Config{
		Secret:        cfg.JWTSecret,
		TTL:           cfg.Token.TTL,
		RefreshWithin: cfg.Token.RefreshWithin,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
	})
	if err != nil {
		return nil, err
	}

	guard, err := csrf.NewGuard(csrf.Config{
		Secret: cfg.CSRFSecret,
		Secure: cfg.Production,
		MaxAge: cfg.CSRF.CookieMaxAge,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(tokens, session.Config{
		SecureCookies: cfg.Production,
		CookieMaxAge:  cfg.Session.CookieMaxAge,
	})

	stats := metrics.New(metrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	dispatcher := audit.NewDispatcher(cfg.Audit, b.sink)

	var shared ratelimit.Backend
	if client != nil {
		shared = ratelimit.NewRedisBackend(client)
	}

	limiter := ratelimit.NewLimiter(shared, ratelimit.Config{
		ProbeInterval: cfg.RateLimit.ProbeInterval,
		OpTimeout:     cfg.RateLimit.OpTimeout,
		SweepInterval: cfg.RateLimit.SweepInterval,
		OnTransition: func(from, to ratelimit.Availability) {
			switch to {
			case ratelimit.BackendDegraded:
				stats.Inc(metrics.BackendDegraded)
				dispatcher.Emit(context.Background(), audit.Event{
					Timestamp: time.Now(),
					EventType: audit.EventBackendDegraded,
					Success:   false,
				})
			case ratelimit.BackendHealthy:
				if from == ratelimit.BackendDegraded {
					stats.Inc(metrics.BackendRecovered)
					dispatcher.Emit(context.Background(), audit.Event{
						Timestamp: time.Now(),
						EventType: audit.EventBackendRecovered,
						Success:   true,
					})
				}
			}
		},
	}, log)

	b.built = true

	return &Engine{
		config:    cfg,
		log:       log,
		tokens:    tokens,
		guard:     guard,
		sessions:  sessions,
		limiter:   limiter,
		stats:     stats,
		audit:     dispatcher,
		redis:     client,
		ownsRedis: ownsRedis,
	}, nil
}
