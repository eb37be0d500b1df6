package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"familytasks/internal/config"
	"familytasks/internal/database"
	"familytasks/internal/events"
	"familytasks/internal/handlers"
	"familytasks/internal/logging"
	"familytasks/internal/repository"
	"familytasks/internal/security"
	"familytasks/internal/service"
	"familytasks/internal/telemetry"
	"familytasks/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "familytasks", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg, database.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	logger.Info().Str("db_type", cfg.DatabaseType).Msg("database connection established")

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize services
	store := repository.NewStore(db)
	limits := service.Limits{
		DefaultMaxMembers: cfg.DefaultMaxMembers,
		PremiumMaxMembers: cfg.PremiumMaxMembers,
	}
	reassigner := service.NewReassignmentService(store, logger)
	families := service.NewFamilyService(store, limits, logger)
	membership := service.NewMembershipService(store, reassigner, logger)
	tasks := service.NewTaskService(store, logger)

	// Initialize handlers
	joinLimiter := security.NewRateLimiter(cfg.JoinRateLimit, time.Minute)
	go joinLimiter.RunCleanup(ctx, 5*time.Minute)

	verifier := security.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	mw := handlers.NewMiddleware(verifier, joinLimiter, logger)

	mux := http.NewServeMux()
	handlers.Register(mux, mw,
		handlers.NewFamilyHandler(families, membership, logger),
		handlers.NewTaskHandler(tasks, logger),
	)

	// Background jobs
	scheduler := worker.NewScheduler(logger)
	if err := scheduler.Add("repair-reassignments", cfg.RepairSchedule, func(ctx context.Context) error {
		_, err := reassigner.RepairPendingReassignments(ctx)
		return err
	}); err != nil {
		return err
	}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay := events.NewRelay(store.Outbox, publisher, cfg.OutboxBatchSize, logger)
		if err := scheduler.Add("outbox-relay", cfg.RelaySchedule, func(ctx context.Context) error {
			_, err := relay.RunOnce(ctx)
			return err
		}); err != nil {
			return err
		}
	} else {
		logger.Info().Msg("AMQP_URL not set, outbox events stay unpublished")
	}

	scheduler.Start()
	defer scheduler.Stop()

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.Logging(logger, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
