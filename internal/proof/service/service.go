// Package service orchestrates proof sessions: define, URL issuance with
// fallback, QR rendering and status checks against the verifier.
package service

//go:generate mockgen -source=contracts.go -destination=mocks/mocks.go -package=mocks FormStore,Verifier,SessionStore,Publisher

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"formproof/internal/proof/metrics"
	"formproof/internal/proof/payload"
	"formproof/internal/proof/qr"
	"formproof/internal/proof/tracer"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/platform/circuit"
	pkgsync "formproof/pkg/platform/sync"
)

const defaultSessionTTL = 10 * time.Minute

// Service is the proof orchestrator.
type Service struct {
	forms     FormStore
	verifier  Verifier
	sessions  SessionStore
	builder   *payload.Builder
	qrCache   *qr.Cache
	breaker   *circuit.Breaker
	publisher Publisher
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	locks     *pkgsync.ShardedMutex

	sessionTTL time.Duration
	newID      func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the span tracer. Defaults to a no-op tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithQRCache replaces the default QR cache.
func WithQRCache(c *qr.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.qrCache = c
		}
	}
}

// WithURLBreaker guards URL issuance. While the breaker is open, init goes
// straight to the fallback URL.
func WithURLBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithSessionTTL sets how long a proof session stays pollable.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithIDGenerator overrides proof id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New wires the orchestrator. Every collaborator is required.
func New(forms FormStore, v Verifier, sessions SessionStore, builder *payload.Builder, opts ...Option) (*Service, error) {
	if forms == nil || v == nil || sessions == nil || builder == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "proof service requires form store, verifier, session store and payload builder")
	}
	s := &Service{
		forms:      forms,
		verifier:   v,
		sessions:   sessions,
		builder:    builder,
		tracer:     tracer.NewNoop(),
		logger:     slog.Default(),
		locks:      pkgsync.NewShardedMutex(),
		sessionTTL: defaultSessionTTL,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.qrCache == nil {
		s.qrCache = qr.NewCache()
	}
	return s, nil
}

// QRCache exposes the cache so the cleanup worker can evict entries of
// removed sessions.
func (s *Service) QRCache() *qr.Cache {
	return s.qrCache
}
