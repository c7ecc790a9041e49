package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"iam-sentinel/internal/audit"
	"iam-sentinel/internal/decision"
	decisionmetrics "iam-sentinel/internal/decision/metrics"
	"iam-sentinel/internal/explain"
	httpapi "iam-sentinel/internal/http"
	"iam-sentinel/internal/orchestrator"
	"iam-sentinel/internal/orchestrator/handler"
	"iam-sentinel/internal/platform/config"
	"iam-sentinel/internal/platform/httpserver"
	"iam-sentinel/internal/platform/logger"
	"iam-sentinel/internal/platform/metrics"
	platformredis "iam-sentinel/internal/platform/redis"
	"iam-sentinel/internal/policy"
	"iam-sentinel/internal/registry"
	"iam-sentinel/internal/remediation"
	"iam-sentinel/internal/risk"
	"iam-sentinel/internal/seed"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "iam-sentinel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	reg := registry.New()
	seed.Populate(reg)

	store, cleanup, err := newAuditStore(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	recorderOpts := []audit.Option{audit.WithLogger(log)}
	if cfg.Explain.Enabled() {
		gen := explain.NewHTTPGenerator(cfg.Explain.Endpoint, cfg.Explain.APIKey, cfg.Explain.Model, cfg.Explain.Timeout)
		recorderOpts = append(recorderOpts, audit.WithGenerator(gen))
		log.Info("external explanation service enabled", "model", cfg.Explain.Model)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Brokers: strings.Join(cfg.Kafka.Brokers, ","),
			Topic:   cfg.Kafka.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		defer sink.Close()
		recorderOpts = append(recorderOpts, audit.WithSink(sink))
		log.Info("kafka audit sink enabled", "topic", cfg.Kafka.Topic)
	}
	recorder := audit.NewRecorder(store, recorderOpts...)

	arbiterOpts := []decision.Option{
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New()),
	}
	if cfg.Explain.Enabled() {
		gen := explain.NewHTTPGenerator(cfg.Explain.Endpoint, cfg.Explain.APIKey, cfg.Explain.Model, cfg.Explain.Timeout)
		arbiterOpts = append(arbiterOpts, decision.WithGenerator(gen))
	}

	m := metrics.New()
	orch := orchestrator.New(
		reg,
		risk.New(),
		policy.New(),
		seed.Policies(),
		decision.New(arbiterOpts...),
		recorder,
		remediation.New(reg, seed.BaselineProvider(), remediation.WithLogger(log)),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(m),
	)

	router := httpapi.NewRouter(handler.New(orch, log), cfg.AdminToken, log)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting iam-sentinel", "addr", cfg.Addr, "audit_store", cfg.AuditStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newAuditStore selects the audit backend from configuration. The returned
// cleanup closes whatever connection the backend holds.
func newAuditStore(cfg config.Server, log *slog.Logger) (audit.Store, func(), error) {
	switch cfg.AuditStore {
	case "", "memory":
		return audit.NewMemoryStore(), func() {}, nil

	case "redis":
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis audit store: %w", err)
		}
		if client == nil {
			return nil, nil, fmt.Errorf("redis audit store: REDIS_URL is required")
		}
		return audit.NewRedisStore(client.Client), func() { _ = client.Close() }, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres audit store: DATABASE_URL is required")
		}
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres audit store: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres audit store: %w", err)
		}
		store := audit.NewPostgres(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("postgres audit store migrate: %w", err)
		}
		log.Info("postgres audit store ready")
		return store, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit store %q", cfg.AuditStore)
	}
}
