package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"formproof/internal/proof/metrics"
	"formproof/internal/proof/models"

	"github.com/redis/go-redis/v9"
)

const redisSessionKeyPrefix = "proof:session:"

// RedisStore persists sessions as JSON with a key TTL of the session's
// remaining lifetime plus a retention window, so clients can still read
// the expired status for a while.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRedisStore constructs a Redis-backed session store; metrics may be nil.
func NewRedisStore(client *redis.Client, retention time.Duration, m *metrics.Metrics) *RedisStore {
	return &RedisStore{
		client:    client,
		retention: retention,
		metrics:   m,
		now:       time.Now,
	}
}

// Save writes the session with TTL eviction.
//
// Errors: returns an error if the session is nil, cannot be encoded, or the write fails.
func (s *RedisStore) Save(ctx context.Context, session *models.ProofSession) error {
	if session == nil {
		return fmt.Errorf("proof session is required")
	}
	start := time.Now()
	defer s.observe("save", start)

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode proof session: %w", err)
	}
	ttl := session.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save proof session: %w", err)
	}
	return nil
}

// FindByID loads a session; a missing key is ErrNotFound.
func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.ProofSession, error) {
	start := time.Now()
	defer s.observe("find", start)

	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find proof session: %w", err)
	}

	var session models.ProofSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode proof session: %w", err)
	}
	return &session, nil
}

// DeleteExpiredBefore is a no-op: Redis evicts sessions by key TTL.
func (s *RedisStore) DeleteExpiredBefore(context.Context, time.Time) (int, []string, error) {
	return 0, nil, nil
}

func (s *RedisStore) observe(op string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStoreOp(op, time.Since(start))
}

func sessionKey(id string) string {
	return redisSessionKeyPrefix + id
}
