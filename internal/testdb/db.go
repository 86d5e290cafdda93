// Package testdb provides database helpers for integration tests. Tests that
// use it are skipped unless DATABASE_URL points at a reachable PostgreSQL
// instance.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
)

// EnvDatabaseURL is the environment variable naming the test database.
const EnvDatabaseURL = "DATABASE_URL"

// GetTestDBWithT opens a connection to the test database and ensures the
// schema is migrated. The test is skipped when DATABASE_URL is unset and
// failed when the database is unreachable. The connection is closed via
// t.Cleanup.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("skipping integration test: %s not set", EnvDatabaseURL)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	if err := migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// WithTx runs fn inside a transaction that is always rolled back, so each
// test sees a clean database regardless of what it writes.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	fn(t, tx)
}

// migrate applies all pending goose migrations to the test database.
func migrate(db *sql.DB) error {
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, migrationsDir())
}

// migrationsDir locates the migration SQL files relative to this source file.
func migrationsDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(
		filepath.Dir(thisFile), "..", "platform", "postgres", "migrations",
	)
}
