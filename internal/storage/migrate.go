package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/lp-portfolio/internal/logging"
)

// Migrator applies the SQL files under a migrations directory
type Migrator struct {
	databaseURL    string
	migrationsPath string
	logger         *logging.Logger
}

// NewMigrator creates a migrator for the snapshot schema
func NewMigrator(databaseURL, migrationsPath string, logger *logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Migrator{
		databaseURL:    databaseURL,
		migrationsPath: migrationsPath,
		logger:         logger.WithField("component", "migrate"),
	}
}

// run opens a migrate instance, hands it to fn and closes it
func (m *Migrator) run(fn func(*migrate.Migrate) error) error {
	mg, err := migrate.New(fmt.Sprintf("file://%s", m.migrationsPath), m.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = mg.Close() // nolint:errcheck // cleanup in defer
	}()
	return fn(mg)
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	return m.run(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				m.logger.Info("Schema already up to date")
				return nil
			}
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		m.logger.Info("Migrations applied")
		return nil
	})
}

// Down rolls back the last migration
func (m *Migrator) Down() error {
	return m.run(func(mg *migrate.Migrate) error {
		if err := mg.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		m.logger.Info("Rolled back one migration")
		return nil
	})
}

// Version returns the applied version; 0 when nothing is applied
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.run(func(mg *migrate.Migrate) error {
		v, d, verr := mg.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get migration version: %w", verr)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}
