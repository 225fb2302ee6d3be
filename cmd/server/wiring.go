package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	formstore "formproof/internal/forms/store"
	"formproof/internal/platform/config"
	"formproof/internal/platform/database"
	"formproof/internal/platform/health"
	"formproof/internal/platform/kafka"
	"formproof/internal/platform/kafka/producer"
	"formproof/internal/platform/redis"
	"formproof/internal/proof/events"
	"formproof/internal/proof/handler"
	"formproof/internal/proof/metrics"
	"formproof/internal/proof/payload"
	"formproof/internal/proof/qr"
	"formproof/internal/proof/service"
	proofstore "formproof/internal/proof/store"
	"formproof/internal/proof/tracer"
	"formproof/internal/proof/verifier"
	"formproof/internal/proof/workers/cleanup"
	"formproof/pkg/platform/circuit"
	"formproof/pkg/platform/middleware/request"
	"formproof/pkg/platform/middleware/requesttime"
	"formproof/pkg/platform/validation"
)

// app holds the wired components that outlive request handling.
type app struct {
	router   chi.Router
	cleanup  *cleanup.CleanupService
	redis    *redis.Client
	db       *database.Pool
	producer *producer.Producer
}

func (a *app) close(log *slog.Logger) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	m := metrics.New()
	checks := health.New(cfg.Server.Environment)

	var err error
	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if a.db, err = database.New(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	forms, err := buildFormStore(cfg, a.db, log)
	if err != nil {
		return nil, err
	}
	if a.db != nil {
		if err := a.db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
		checks.RegisterCheck("database", a.db.Health)
	}

	var sessions interface {
		service.SessionStore
		cleanup.SessionStore
	}
	if a.redis != nil {
		sessions = proofstore.NewRedisStore(a.redis.Client, cfg.Proof.SessionRetention, m)
		checks.RegisterCheck("redis", a.redis.Health)
		log.Info("proof sessions stored in redis")
	} else {
		sessions = proofstore.NewInMemoryStore()
		log.Info("proof sessions stored in memory")
	}

	registry, err := buildRegistry(cfg.Proof, log)
	if err != nil {
		return nil, err
	}

	client, err := verifier.New(cfg.Verifier, verifier.WithLogger(log))
	if err != nil {
		return nil, err
	}

	publisher, err := buildPublisher(cfg.Kafka, a, checks, log)
	if err != nil {
		return nil, err
	}

	cache := qr.NewCache(
		qr.WithSize(cfg.Proof.QRCacheSize),
		qr.WithTTL(cfg.Proof.QRCacheTTL),
		qr.WithHitMissHooks(m.RecordQRCacheHit, m.RecordQRCacheMiss),
	)
	breaker := circuit.New("proof-url",
		circuit.WithFailureThreshold(cfg.Proof.URLFailureThreshold),
		circuit.WithCooldown(cfg.Proof.URLCircuitCooldown),
	)

	proofs, err := service.New(forms, client, sessions, payload.NewBuilder(registry, payload.WithLogger(log)),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithTracer(tracer.NewOTel()),
		service.WithQRCache(cache),
		service.WithURLBreaker(breaker),
		service.WithPublisher(publisher),
		service.WithSessionTTL(cfg.Proof.SessionTTL),
	)
	if err != nil {
		return nil, err
	}

	a.cleanup, err = cleanup.New(sessions,
		cleanup.WithCleanupInterval(cfg.Proof.CleanupInterval),
		cleanup.WithRetention(cfg.Proof.SessionRetention),
		cleanup.WithQRCache(cache),
		cleanup.WithMetrics(m),
		cleanup.WithCleanupLogger(log),
	)
	if err != nil {
		return nil, err
	}

	a.router = newRouter(log, handler.New(proofs, log), checks)
	return a, nil
}

func newRouter(log *slog.Logger, proofs *handler.Handler, checks *health.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(request.Latency(request.NewMetrics(prometheus.DefaultRegisterer)))
	r.Use(request.BodyLimit(validation.MaxBodySize))
	r.Use(request.ContentTypeJSON)

	checks.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	proofs.Register(r)
	return r
}

func buildFormStore(cfg *config.Config, db *database.Pool, log *slog.Logger) (service.FormStore, error) {
	if db != nil {
		log.Info("forms loaded from postgres")
		return formstore.NewPostgres(db.DB()), nil
	}
	if cfg.Proof.FormsSeedFile != "" {
		forms, err := formstore.LoadSeedFile(cfg.Proof.FormsSeedFile)
		if err != nil {
			return nil, fmt.Errorf("load forms seed: %w", err)
		}
		log.Info("forms loaded from seed file", "path", cfg.Proof.FormsSeedFile, "forms", forms.Len())
		return forms, nil
	}
	log.Warn("no form source configured; every proof init will return not found")
	return formstore.NewInMemoryStore(), nil
}

func buildRegistry(cfg config.Proof, log *slog.Logger) (payload.Registry, error) {
	if cfg.CredentialRegistryFile != "" {
		reg, err := payload.LoadRegistryFile(cfg.CredentialRegistryFile)
		if err != nil {
			return nil, fmt.Errorf("load credential registry: %w", err)
		}
		return reg, nil
	}
	if cfg.UseFixtureRegistry {
		log.Warn("using fixture credential registry; not for production")
		return payload.FixtureRegistry(), nil
	}
	return payload.StaticRegistry{}, nil
}

func buildPublisher(cfg config.KafkaConfig, a *app, checks *health.Handler, log *slog.Logger) (service.Publisher, error) {
	if cfg.Brokers == "" {
		return events.NewLogPublisher(log), nil
	}
	p, err := producer.New(producer.Config{
		Brokers:         cfg.Brokers,
		Acks:            cfg.Acks,
		Retries:         cfg.Retries,
		DeliveryTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	a.producer = p
	hc := kafka.NewHealthChecker(cfg.Brokers)
	checks.RegisterCheck(hc.Name(), hc.Check)
	log.Info("proof events published to kafka", "topic", cfg.Topic)
	return events.NewKafkaPublisher(p, cfg.Topic), nil
}
