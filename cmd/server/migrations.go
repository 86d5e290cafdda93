package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/lorecraft/graphd/internal/config"
	"github.com/pressly/goose/v3"
)

// migrationTableName is the table goose uses to track applied migrations.
const migrationTableName = "schema_migrations"

// runMigrations executes the given goose command (up, down, status) against
// the configured database.
func runMigrations(cfg *config.Config, command string) error {
	migrationsDir, err := findMigrationsDir()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}()

	goose.SetTableName(migrationTableName)
	goose.SetLogger(&gooseSlogAdapter{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	switch command {
	case "up":
		return goose.Up(db, migrationsDir)
	case "down":
		return goose.Down(db, migrationsDir)
	case "status":
		return goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unsupported migration command %q", command)
	}
}

// findMigrationsDir locates the migrations directory relative to the working
// directory, walking up so the binary can run from the repository root or
// from cmd/server.
func findMigrationsDir() (string, error) {
	relPath := filepath.Join("internal", "platform", "postgres", "migrations")

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, relPath)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("migrations directory %s not found", relPath)
		}
		dir = parent
	}
}

// gooseSlogAdapter routes goose's log output through slog.
type gooseSlogAdapter struct{}

func (*gooseSlogAdapter) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "source", "goose")
	os.Exit(1)
}

func (*gooseSlogAdapter) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "source", "goose")
}
