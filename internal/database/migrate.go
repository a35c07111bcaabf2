package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// newMigrator opens a dedicated connection; closing the returned instance
// closes it without touching the application pool.
func newMigrator(connStr string) (*migrate.Migrate, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pgx driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

// Migrate applies every pending migration. It is a no-op on an up-to-date schema.
func Migrate(connStr string) error {
	m, err := newMigrator(connStr)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Rollback reverts the given number of migrations.
func Rollback(connStr string, steps int) error {
	m, err := newMigrator(connStr)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}

	return nil
}

// Version reports the applied schema version and whether the last run left it dirty.
func Version(connStr string) (uint, bool, error) {
	m, err := newMigrator(connStr)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}

	return v, dirty, nil
}
