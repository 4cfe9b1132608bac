//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/muvico/platform/internal/database"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration tests")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, database.Options{DSN: dsn})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := db.RunMigrations(ctx, database.NewSchemaMigrator(db, nil)); err != nil {
		db.Close()
		t.Fatalf("migrate db: %v", err)
	}

	cleanupTables(t, db.DB)

	return db.DB
}

func cleanupTables(t *testing.T, db *sqlx.DB) {
	t.Helper()
	stmts := []string{
		"TRUNCATE cues CASCADE",
		"TRUNCATE presentations CASCADE",
		"TRUNCATE users CASCADE",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("cleanup %s: %v", stmt, err)
		}
	}
}
