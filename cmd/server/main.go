package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"drone-dispatch/internal/auth"
	"drone-dispatch/internal/config"
	"drone-dispatch/internal/dispatch"
	"drone-dispatch/internal/events"
	natspub "drone-dispatch/internal/events/nats"
	"drone-dispatch/internal/logging"
	"drone-dispatch/internal/repo/memory"
	"drone-dispatch/internal/repo/postgres"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/transport/grpcapi"
	"drone-dispatch/internal/transport/httpapi"
	"drone-dispatch/internal/transport/thriftapi"
	"drone-dispatch/migrations"
)

type store interface {
	service.Store
	events.OutboxRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup("info", "json")
		fallback.Fatal().Err(err).Msg("config error")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store error")
	}
	defer closeStore()

	fleetSpecs, err := config.LoadFleet(cfg.FleetFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("fleet file error")
	}

	svc := service.New(st, logger.With().Str("component", "service").Logger(), service.Options{MaxSteps: cfg.SimMaxSteps})
	if _, err := svc.EnsureFleet(ctx, fleetSpecs); err != nil {
		logger.Fatal().Err(err).Msg("fleet seeding error")
	}
	authenticator := auth.New(cfg.JWTSecret, cfg.JWTTTL)

	var publisher events.Publisher = events.LogPublisher{Logger: logger.With().Str("component", "events").Logger()}
	if cfg.OutboxEnabled && cfg.NATSURL != "" {
		natsPublisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats error")
		}
		publisher = natsPublisher
	}
	defer publisher.Close()

	httpHandler := httpapi.NewServer(svc, authenticator, httpapi.Options{
		Logger:       logger.With().Str("component", "http").Logger(),
		StepInterval: cfg.SimStepInterval,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcapi.NewServer(svc, authenticator, grpcapi.Options{
		Logger:       logger.With().Str("component", "grpc").Logger(),
		StepInterval: cfg.SimStepInterval,
	})
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("grpc listen error")
	}

	thriftServer, err := thriftapi.NewServer(cfg.ThriftAddr, svc, authenticator, logger.With().Str("component", "thrift").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("thrift error")
	}

	var scheduler *dispatch.Scheduler
	if cfg.DispatchSchedule != "" {
		scheduler = dispatch.NewScheduler(svc, logger.With().Str("component", "dispatch").Logger())
		if err := scheduler.Start(cfg.DispatchSchedule); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.DispatchSchedule).Msg("dispatch schedule error")
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		err := grpcServer.Serve(grpcListener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(thriftServer.Serve)

	if cfg.OutboxEnabled {
		worker := &events.OutboxWorker{
			Repo:         st,
			Publisher:    publisher,
			PollInterval: cfg.OutboxInterval,
			BatchSize:    cfg.OutboxBatch,
			Logger:       logger.With().Str("component", "outbox").Logger(),
		}
		g.Go(func() error {
			logger.Info().Dur("interval", cfg.OutboxInterval).Int("batch", cfg.OutboxBatch).Msg("outbox worker running")
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
		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		thriftServer.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// openStore uses Postgres when DATABASE_URL is set and the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return memory.NewStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}
