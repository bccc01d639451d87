package main

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/testdb"
)

func TestSlogGooseLogger(t *testing.T) {
	var buf strings.Builder
	l := &slogGooseLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Printf("OK   %s (%d ms)\n", "00001_create_tasks.sql", 12)
	l.Fatalf("failed to apply %s", "00002_governor.sql")

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "00001_create_tasks.sql")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "00002_governor.sql")
}

func TestRunMigrations_RejectsBadInput(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://localhost:1/unused"}}

	err := runMigrations(context.Background(), cfg, "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")

	err = runMigrations(context.Background(), &config.Config{}, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is empty")
}

func TestExecuteMigration_UpAndVersion(t *testing.T) {
	dbURL := testdb.GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL not set - skipping migration test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	require.NoError(t, executeMigration(ctx, db, "up", slog.Default()))
	require.NoError(t, executeMigration(ctx, db, "version", slog.Default()))

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'tasks')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}
