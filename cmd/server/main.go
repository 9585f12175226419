package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"skybite/internal/auth"
	"skybite/internal/config"
	"skybite/internal/delivery"
	"skybite/internal/events"
	natspub "skybite/internal/events/nats"
	"skybite/internal/logging"
	"skybite/internal/repo/postgres"
	"skybite/internal/transport/grpcapi"
	"skybite/internal/transport/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

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

	store := postgres.NewStore(pool)
	lifecycleCfg := delivery.Config{
		TickInterval:   cfg.TickInterval,
		ArrivalGrace:   cfg.ArrivalGrace,
		ResponseWindow: cfg.ResponseWindow,
		MinBattery:     cfg.MinBattery,
	}
	svc := delivery.NewService(store, lifecycleCfg, logger)
	orch := delivery.NewOrchestrator(store, lifecycleCfg, logger)
	defer orch.Close()

	if err := orch.Recover(ctx); err != nil {
		logger.Fatal("timer recovery error", zap.Error(err))
	}

	authenticator := auth.New(cfg.JWTSecret, cfg.JWTTTL)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.OutboxEnabled {
		natsPublisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Fatal("nats error", zap.Error(err))
		}
		publisher = natsPublisher
		defer publisher.Close()
	}

	httpHandler := httpapi.NewServer(svc, orch, authenticator)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcapi.NewServer(svc, orch, authenticator)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen error", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		err := grpcServer.Serve(grpcListener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	if cfg.OutboxEnabled {
		worker := &events.OutboxWorker{
			Repo:         store,
			Publisher:    publisher,
			PollInterval: cfg.OutboxInterval,
			BatchSize:    cfg.OutboxBatch,
			Logger:       logger,
		}
		g.Go(func() error {
			logger.Info("outbox worker running",
				zap.Duration("interval", cfg.OutboxInterval),
				zap.Int("batch", cfg.OutboxBatch))
			err := worker.Start(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		orch.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
