// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"formproof/internal/proof/verifier"
	dErrors "formproof/pkg/domain-errors"
	"formproof/pkg/validation"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Proof holds proof lifecycle tuning.
type Proof struct {
	SessionTTL             time.Duration `env:"PROOF_SESSION_TTL" validate:"gt=0"`
	SessionRetention       time.Duration `env:"PROOF_SESSION_RETENTION"`
	CleanupInterval        time.Duration `env:"PROOF_CLEANUP_INTERVAL" validate:"gt=0"`
	QRCacheSize            int           `env:"QR_CACHE_SIZE" validate:"gt=0"`
	QRCacheTTL             time.Duration `env:"QR_CACHE_TTL" validate:"gt=0"`
	URLFailureThreshold    int           `env:"PROOF_URL_FAILURE_THRESHOLD" validate:"gt=0"`
	URLCircuitCooldown     time.Duration `env:"PROOF_URL_CIRCUIT_COOLDOWN" validate:"gt=0"`
	CredentialRegistryFile string        `env:"CREDENTIAL_REGISTRY_FILE"`
	UseFixtureRegistry     bool          `env:"CREDENTIAL_REGISTRY_FIXTURES"`
	FormsSeedFile          string        `env:"FORMS_SEED_FILE"`
}

// Watch holds the proofwatch CLI defaults. Flags override them.
type Watch struct {
	API          string        `env:"FORMPROOF_API" validate:"required"`
	PollInterval time.Duration `env:"PROOF_POLL_INTERVAL" validate:"gt=0"`
}

// RedisConfig configures the optional session store backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional PostgreSQL form store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the optional verification event stream.
type KafkaConfig struct {
	Brokers string
	Topic   string
	Acks    string
	Retries int
}

// Config is the complete service configuration.
type Config struct {
	Server   Server
	Verifier verifier.Config
	Proof    Proof
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// process environment. Variables already set in the environment win over
// the file. Invalid durations and numbers, and a missing or malformed
// verifier section, are CodeConfiguration errors.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Server: Server{
			Addr:            getEnv("FORMPROOF_ADDR", ":8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
		},
		Verifier: verifier.Config{
			BaseURL:         strings.TrimSpace(os.Getenv("VERIFIER_BASE_URL")),
			APIKey:          strings.TrimSpace(os.Getenv("VERIFIER_API_KEY")),
			LOBID:           strings.TrimSpace(os.Getenv("VERIFIER_LOB_ID")),
			FallbackBaseURL: strings.TrimSpace(os.Getenv("VERIFIER_FALLBACK_BASE_URL")),
			Timeout:         p.duration("VERIFIER_TIMEOUT", 10*time.Second),
		},
		Proof: Proof{
			SessionTTL:             p.duration("PROOF_SESSION_TTL", 10*time.Minute),
			SessionRetention:       p.duration("PROOF_SESSION_RETENTION", 5*time.Minute),
			CleanupInterval:        p.duration("PROOF_CLEANUP_INTERVAL", time.Minute),
			QRCacheSize:            p.integer("QR_CACHE_SIZE", 1024),
			QRCacheTTL:             p.duration("QR_CACHE_TTL", 10*time.Minute),
			URLFailureThreshold:    p.integer("PROOF_URL_FAILURE_THRESHOLD", 5),
			URLCircuitCooldown:     p.duration("PROOF_URL_CIRCUIT_COOLDOWN", 30*time.Second),
			CredentialRegistryFile: os.Getenv("CREDENTIAL_REGISTRY_FILE"),
			UseFixtureRegistry:     p.boolean("CREDENTIAL_REGISTRY_FIXTURES", false),
			FormsSeedFile:          os.Getenv("FORMS_SEED_FILE"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    p.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_PROOF_EVENTS_TOPIC", "formproof.proof-events"),
			Acks:    getEnv("KAFKA_ACKS", "all"),
			Retries: p.integer("KAFKA_RETRIES", 3),
		},
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.Verifier.Validate(); err != nil {
		return nil, err
	}
	if err := validation.ValidateConfig(cfg.Proof); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchFromEnv reads the proofwatch defaults. It needs no verifier
// credentials since the CLI only talks to the formproof API.
func WatchFromEnv() (*Watch, error) {
	p := &parser{}
	cfg := &Watch{
		API:          getEnv("FORMPROOF_API", "http://localhost:8080"),
		PollInterval: p.duration("PROOF_POLL_INTERVAL", 3*time.Second),
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := validation.ValidateConfig(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// parser collects every malformed variable so operators see them all at once.
type parser struct {
	problems []string
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: invalid duration %q", key, raw))
		return fallback
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: invalid integer %q", key, raw))
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s: invalid boolean %q", key, raw))
		return fallback
	}
	return b
}

func (p *parser) err() error {
	if len(p.problems) == 0 {
		return nil
	}
	return dErrors.New(dErrors.CodeConfiguration, "invalid configuration: "+strings.Join(p.problems, "; "))
}
