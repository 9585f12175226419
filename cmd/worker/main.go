package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"skybite/internal/config"
	"skybite/internal/events"
	natspub "skybite/internal/events/nats"
	"skybite/internal/logging"
	"skybite/internal/repo/postgres"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	if !cfg.OutboxEnabled {
		logger.Info("outbox disabled; exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db error", zap.Error(err))
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			logger.Fatal("migration error", zap.Error(err))
		}
	}

	publisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		logger.Fatal("nats error", zap.Error(err))
	}
	defer publisher.Close()

	store := postgres.NewStore(pool)
	worker := &events.OutboxWorker{
		Repo:         store,
		Publisher:    publisher,
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatch,
		Logger:       logger,
	}

	logger.Info("outbox worker running",
		zap.Duration("interval", cfg.OutboxInterval),
		zap.Int("batch", cfg.OutboxBatch))
	if err := worker.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		logger.Fatal("worker error", zap.Error(err))
	}
}
