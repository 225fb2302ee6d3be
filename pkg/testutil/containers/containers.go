//go:build integration

// Package containers starts the backing services used by formproof's
// integration suites. Each service is started once per test binary and
// shared; testcontainers' reaper removes them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers, starting each on first use.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

// GetPostgres returns the form-store database with migrations applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.postgres, NewPostgresContainer)
}

// GetRedis returns the session-store Redis.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.redis, NewRedisContainer)
}

// GetKafka returns the proof-event broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.kafka, NewKafkaContainer)
}

func startOnce[C any](t *testing.T, mu *sync.Mutex, slot **C, start func(*testing.T) *C) *C {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
