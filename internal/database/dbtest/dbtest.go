// Package dbtest provides migrated databases for package tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/PhilTenno/filesyncgo/internal/database"
)

// NewSQLite creates a migrated in-memory sqlite database named after the test,
// so parallel tests never share state.
func NewSQLite(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, database.SQLiteMemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		_ = db.Close()
		t.Fatalf("ping test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// NewPostgres connects to TEST_POSTGRES_URL and resets the schema. The test
// is skipped when the variable is unset or the server is unreachable.
func NewPostgres(t *testing.T) *database.DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("TEST_POSTGRES_URL not set, skipping")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		t.Skip("Postgres URL not parseable, skipping")
	}
	if err := db.Ping(context.Background()); err != nil {
		_ = db.Close()
		t.Skip("Postgres not available for testing")
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := db.DB.Exec(`DELETE FROM credentials`); err != nil {
		_ = db.Close()
		t.Fatalf("reset credentials: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
