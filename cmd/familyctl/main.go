package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"familytasks/internal/config"
	"familytasks/internal/database"
	"familytasks/internal/logging"
	"familytasks/internal/repository"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "familyctl",
		Short:         "Maintenance commands for the family task engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(orphanedTasksCmd())
	rootCmd.AddCommand(exportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs: configuration, a logger and a migrated store
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *database.DB
	store  *repository.Store
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Commands print their results to stdout, so logs go to stderr
	logger := logging.NewWithWriter(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stderr)

	db, err := database.InitializeWithConfig(cfg, database.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  repository.NewStore(db),
	}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
