package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func TestSchemaMigratorHonoursCancelledContext(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer sqlDB.Close()

	db := &DB{DB: sqlx.NewDb(sqlDB, DriverName), logger: zap.NewNop()}
	m := NewSchemaMigrator(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Up(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Up, got %v", err)
	}
	if err := m.Down(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Down, got %v", err)
	}
	if _, _, err := m.Version(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Version, got %v", err)
	}
	if inUse := db.Stats().InUse; inUse != 0 {
		t.Fatalf("expected no checked-out connections, got %d", inUse)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestSchemaMigratorRequiresDatabase(t *testing.T) {
	var m *SchemaMigrator
	if err := m.Up(context.Background()); err == nil {
		t.Fatal("expected error without a database handle")
	}
}
