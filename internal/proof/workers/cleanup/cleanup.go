package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"formproof/internal/proof/metrics"
)

// SessionStore exposes cleanup for expired proof sessions. It returns the
// number removed and the define ids among them.
type SessionStore interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, []string, error)
}

// QRCache drops rendered codes of removed sessions.
type QRCache interface {
	Evict(key string) bool
	Len() int
}

// CleanupResult summarizes the deletions performed by a cleanup run.
type CleanupResult struct {
	DeletedSessions int
	EvictedQRCodes  int
}

// CleanupService periodically removes expired proof sessions. Sessions are
// kept for a retention window after expiry so late polls still see
// "expired" instead of "not found".
type CleanupService struct {
	sessions  SessionStore
	qrCache   QRCache
	metrics   *metrics.Metrics
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRetention keeps expired sessions for d before removing them.
func WithRetention(d time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// WithQRCache evicts cached QR codes of removed sessions.
func WithQRCache(c QRCache) CleanupOption {
	return func(s *CleanupService) {
		s.qrCache = c
	}
}

// WithMetrics counts removed sessions.
func WithMetrics(m *metrics.Metrics) CleanupOption {
	return func(s *CleanupService) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a CleanupService with the session store and options applied.
func New(sessions SessionStore, opts ...CleanupOption) (*CleanupService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	svc := &CleanupService{
		sessions:  sessions,
		interval:  time.Minute,
		retention: 5 * time.Minute,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "proof session cleanup failed", "error", err)
				continue
			}
			if res.DeletedSessions > 0 {
				s.logger.InfoContext(ctx, "proof sessions cleaned up",
					"deleted_sessions", res.DeletedSessions,
					"evicted_qr_codes", res.EvictedQRCodes,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce removes sessions that expired more than the retention window ago
// and evicts their QR codes.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	cutoff := s.now().Add(-s.retention)

	deleted, defineIDs, err := s.sessions.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("delete expired proof sessions: %w", err)
	}
	res.DeletedSessions = deleted

	if s.qrCache != nil {
		for _, defineID := range defineIDs {
			if s.qrCache.Evict(defineID) {
				res.EvictedQRCodes++
			}
		}
	}
	if s.metrics != nil {
		s.metrics.AddSessionsExpired(res.DeletedSessions)
		if s.qrCache != nil {
			s.metrics.SetQRCacheEntries(s.qrCache.Len())
		}
	}
	return res, nil
}
