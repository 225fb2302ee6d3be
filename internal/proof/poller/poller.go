package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultTTL      = 10 * time.Minute
)

// Checker performs one status check.
type Checker interface {
	CheckStatus(ctx context.Context, proofID string) (Result, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, proofID string) (Result, error)

// CheckStatus calls f.
func (f CheckerFunc) CheckStatus(ctx context.Context, proofID string) (Result, error) {
	return f(ctx, proofID)
}

// Poller schedules status checks for one proof at a time.
type Poller struct {
	checker    Checker
	newBackOff func() backoff.BackOff
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval polls at a constant interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
		}
	}
}

// WithBackOff replaces the interval policy. The factory is called once per
// Run. A policy returning backoff.Stop ends polling as expired.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(p *Poller) {
		if factory != nil {
			p.newBackOff = factory
		}
	}
}

// WithTTL bounds a Run; after it the poller reports expired itself.
func WithTTL(ttl time.Duration) Option {
	return func(p *Poller) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock overrides the time source for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger for failed checks.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a poller with a 3s constant interval and a 10m lifetime.
func New(checker Checker, opts ...Option) *Poller {
	p := &Poller{
		checker:    checker,
		newBackOff: func() backoff.BackOff { return backoff.NewConstantBackOff(DefaultInterval) },
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run checks proofID immediately and then once per interval until a
// terminal status, the lifetime elapses, or ctx is cancelled. onUpdate, if
// set, sees every observation including the last. The final update is
// returned; cancellation returns ctx.Err().
func (p *Poller) Run(ctx context.Context, proofID string, onUpdate func(Update)) (Update, error) {
	m := NewMachine(p.now(), p.ttl)
	policy := p.newBackOff()
	policy.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-timer.C:
		}

		res, err := p.checker.CheckStatus(ctx, proofID)
		if ctx.Err() != nil {
			return Update{}, ctx.Err()
		}
		if err != nil {
			p.logger.WarnContext(ctx, "proof status check failed", "proof_id", proofID, "error", err)
		}

		out := m.Tick(p.now(), res, err)
		if onUpdate != nil {
			onUpdate(out.Update)
		}
		if out.Done {
			p.logger.DebugContext(ctx, "proof polling finished",
				"proof_id", proofID,
				"status", out.Update.Status,
				"attempts", out.Update.Attempt,
			)
			return out.Update, nil
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			final := Update{Status: StatusExpired, Attempt: out.Update.Attempt}
			if onUpdate != nil {
				onUpdate(final)
			}
			return final, nil
		}
		if remaining := m.Deadline().Sub(p.now()); remaining < next {
			next = max(remaining, 0)
		}
		timer.Reset(next)
	}
}
