// Package main runs the ecosystem task queue: the HTTP API used to enqueue
// and administer tasks, the dispatch trigger for the self-chaining dispatcher
// and, when enabled, the persistent dispatch loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	cfg, err := loadAppConfig()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if *migrateCmd != "" {
		if err := runMigrations(context.Background(), cfg, *migrateCmd); err != nil {
			appLogger.Error("migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run connects to the database, wires the application and serves until ctx
// is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}

// loadAppConfig loads the configuration and logs a summary of it.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"governor_backend", cfg.Governor.Backend,
		"worker", cfg.Dispatch.Worker)
	if cfg.Dispatch.TriggerURL != "" {
		slog.Debug("Self-chaining trigger configured",
			"trigger_secret_present", cfg.Dispatch.TriggerSecret != "")
	}
	return cfg, nil
}
