package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/platform/postgres/migrations"
	"github.com/phrazzld/eco-queue/internal/redact"
)

// migrationCommands lists the goose commands -migrate accepts.
var migrationCommands = []string{"up", "down", "reset", "status", "version"}

// slogGooseLogger routes goose output through slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level. goose's own Fatalf would exit the process; the
// caller returns the error instead.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// runMigrations applies command against the configured database using the
// embedded migrations.
func runMigrations(ctx context.Context, cfg *config.Config, command string) error {
	migrationLogger := slog.Default().With(
		"correlation_id", uuid.New().String(),
		"component", "migrations",
		"command", command,
	)

	if !isMigrationCommand(command) {
		return fmt.Errorf("unknown migration command: %s (expected one of %s)",
			command, strings.Join(migrationCommands, ", "))
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is empty: check your configuration")
	}
	migrationLogger.Info("Starting migration operation", "url", redact.String(cfg.Database.URL))

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			migrationLogger.Error("Error closing database connection", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return executeMigration(ctx, db, command, migrationLogger)
}

// executeMigration runs one goose command on db.
func executeMigration(ctx context.Context, db *sql.DB, command string, migrationLogger *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(migrations.TableName)
	goose.SetLogger(&slogGooseLogger{logger: migrationLogger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	before, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		migrationLogger.Warn("Failed to retrieve current migration version", "error", err)
	}

	start := time.Now()
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "reset":
		err = goose.ResetContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	case "version":
		err = goose.VersionContext(ctx, db, ".")
	}
	if err != nil {
		migrationLogger.Error("Migration command failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	after, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		migrationLogger.Warn("Failed to retrieve new migration version", "error", err)
	}
	migrationLogger.Info("Migration command executed successfully",
		"previous_version", before,
		"version", after,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func isMigrationCommand(command string) bool {
	for _, c := range migrationCommands {
		if c == command {
			return true
		}
	}
	return false
}
