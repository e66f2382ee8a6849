package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Availability is the shared-backend health state.
type Availability uint8

const (
	// BackendUnknown means no probe has run yet.
	BackendUnknown Availability = iota
	// BackendHealthy means shared-store operations are being used.
	BackendHealthy
	// BackendDegraded means calls fall back to the local fixed window.
	BackendDegraded
)

func (a Availability) String() string {
	switch a {
	case BackendHealthy:
		return "healthy"
	case BackendDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

const (
	// DefaultProbeInterval caches the health probe result between
	// re-probes.
	DefaultProbeInterval = 60 * time.Second
	// DefaultOpTimeout bounds every shared-store call; a timeout is
	// treated exactly like a failure.
	DefaultOpTimeout = 1 * time.Second
	// DefaultSweepInterval is how often expired fallback records are
	// removed.
	DefaultSweepInterval = 5 * time.Minute
)

// Config tunes the Limiter's availability machinery.
type Config struct {
	ProbeInterval time.Duration
	OpTimeout     time.Duration
	SweepInterval time.Duration

	// OnTransition, when set, is invoked after every availability state
	// change (metrics/audit hooks). Called outside the limiter lock.
	OnTransition func(from, to Availability)
}

// Limiter answers admission-control checks against the shared sliding
// window, degrading to the local fixed window whenever the shared store is
// unavailable. Callers never see which path served them.
type Limiter struct {
	shared Backend // nil when no shared store is configured
	local  *MemoryBackend
	config Config
	log    zerolog.Logger

	mu        sync.Mutex
	state     Availability
	checkedAt time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLimiter builds a Limiter over the optional shared backend and starts
// the fallback sweep goroutine. Close must be called to stop it.
func NewLimiter(shared Backend, cfg Config, log zerolog.Logger) *Limiter {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	l := &Limiter{
		shared: shared,
		local:  NewMemoryBackend(),
		config: cfg,
		log:    log,
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.sweepLoop()

	return l
}

// Check consumes one slot for the identifier under the given policy. The
// shared sliding window serves the call when healthy; any shared-store
// failure degrades immediately and the local fixed window answers instead.
// Check itself never fails.
func (l *Limiter) Check(ctx context.Context, identifier string, maxRequests int, window time.Duration) Result {
	if l.sharedUsable(ctx) {
		opCtx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
		res, err := l.shared.Check(opCtx, identifier, maxRequests, window)
		cancel()
		if err == nil {
			return res
		}
		l.markDegraded(err)
	}

	res, _ := l.local.Check(ctx, identifier, maxRequests, window)
	return res
}

// Status is the read-only equivalent of Check: it reports standing without
// consuming a slot.
func (l *Limiter) Status(ctx context.Context, identifier string, maxRequests int, window time.Duration) Result {
	if l.sharedUsable(ctx) {
		opCtx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
		res, err := l.shared.Status(opCtx, identifier, maxRequests, window)
		cancel()
		if err == nil {
			return res
		}
		l.markDegraded(err)
	}

	res, _ := l.local.Status(ctx, identifier, maxRequests, window)
	return res
}

// Reset clears both shared and local state for the identifier
// (administrative overrides, tests). Shared-store failure degrades as usual
// and is not reported; the local side is always cleared.
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	if l.sharedUsable(ctx) {
		opCtx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
		err := l.shared.Reset(opCtx, identifier)
		cancel()
		if err != nil {
			l.markDegraded(err)
		}
	}

	_ = l.local.Reset(ctx, identifier)
}

// State reports the current availability without probing.
func (l *Limiter) State() Availability {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Close stops the sweep goroutine. Idempotent.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
}

// sharedUsable reports whether the shared backend should serve this call,
// re-probing when the cached health result has gone stale.
func (l *Limiter) sharedUsable(ctx context.Context) bool {
	if l.shared == nil {
		return false
	}

	l.mu.Lock()
	state, checkedAt := l.state, l.checkedAt
	l.mu.Unlock()

	if state != BackendUnknown && time.Since(checkedAt) < l.config.ProbeInterval {
		return state == BackendHealthy
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
	err := l.shared.Probe(probeCtx)
	cancel()

	if err != nil {
		l.transition(BackendDegraded, err)
		return false
	}
	l.transition(BackendHealthy, nil)
	return true
}

// markDegraded flips to the degraded state after a runtime failure, without
// waiting for the probe cache to expire.
func (l *Limiter) markDegraded(err error) {
	l.transition(BackendDegraded, err)
}

func (l *Limiter) transition(to Availability, cause error) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.checkedAt = time.Now()
	l.mu.Unlock()

	if from == to {
		return
	}

	// Log once per transition, never per call.
	switch to {
	case BackendDegraded:
		l.log.Warn().
			Str("from", from.String()).
			AnErr("cause", cause).
			Msg("rate limit backend degraded, using local fallback")
	case BackendHealthy:
		if from == BackendDegraded {
			l.log.Info().Msg("rate limit backend recovered")
		}
	}

	if l.config.OnTransition != nil {
		l.config.OnTransition(from, to)
	}
}

func (l *Limiter) sweepLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.local.Sweep(time.Now()); removed > 0 {
				l.log.Debug().Int("removed", removed).Msg("swept expired rate limit records")
			}
		case <-l.done:
			return
		}
	}
}
