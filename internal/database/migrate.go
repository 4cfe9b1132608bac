package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator defines an interface capable of applying schema migrations.
type Migrator interface {
	Up(ctx context.Context) error
}

// SchemaMigrator applies the embedded migrations with golang-migrate.
type SchemaMigrator struct {
	db     *DB
	logger *zap.Logger
}

// NewSchemaMigrator builds a migrator for db.
func NewSchemaMigrator(db *DB, logger *zap.Logger) *SchemaMigrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaMigrator{db: db, logger: logger}
}

// open builds a migrator on a connection borrowed from the pool. The
// returned close func releases that connection without closing the pool.
func (m *SchemaMigrator) open(ctx context.Context) (*migrate.Migrate, func(), error) {
	if m == nil || m.db == nil {
		return nil, nil, errors.New("schema migrator requires a database handle")
	}
	conn, err := m.db.DB.DB.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire migration connection: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("create migrate driver: %w", err)
	}
	mig, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		select {
		case mig.GracefulStop <- true:
		default:
		}
	})
	return mig, func() {
		stop()
		if srcErr, dbErr := mig.Close(); srcErr != nil || dbErr != nil {
			m.logger.Warn("close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}, nil
}

// Up applies all pending migrations. Cancelling ctx stops after the
// migration in flight.
func (m *SchemaMigrator) Up(ctx context.Context) error {
	mig, done, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	m.logVersion(mig)
	return ctx.Err()
}

// Down rolls back steps migrations.
func (m *SchemaMigrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	mig, done, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	m.logVersion(mig)
	return ctx.Err()
}

// Version reports the applied schema version.
func (m *SchemaMigrator) Version(ctx context.Context) (uint, bool, error) {
	mig, done, err := m.open(ctx)
	if err != nil {
		return 0, false, err
	}
	defer done()
	version, dirty, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *SchemaMigrator) logVersion(mig *migrate.Migrate) {
	version, dirty, err := mig.Version()
	if err != nil {
		return
	}
	m.logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
