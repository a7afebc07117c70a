package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"drone-dispatch/internal/config"
	"drone-dispatch/internal/events"
	natspub "drone-dispatch/internal/events/nats"
	"drone-dispatch/internal/logging"
	"drone-dispatch/internal/repo/postgres"
	"drone-dispatch/migrations"
)

// The worker relays the Postgres outbox to NATS when the API server runs
// with OUTBOX_ENABLED=false.
func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fallback := logging.Setup("info", "json")
		fallback.Fatal().Err(err).Msg("config error")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" || cfg.NATSURL == "" {
		logger.Fatal().Msg("DATABASE_URL and NATS_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool, migrations.FS, logger); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
	}

	publisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats error")
	}
	defer publisher.Close()

	worker := &events.OutboxWorker{
		Repo:         postgres.NewStore(pool),
		Publisher:    publisher,
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatch,
		Logger:       logger.With().Str("component", "outbox").Logger(),
	}

	logger.Info().Dur("interval", cfg.OutboxInterval).Int("batch", cfg.OutboxBatch).Msg("outbox worker running")
	if err := worker.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		logger.Fatal().Err(err).Msg("worker error")
	}
}
