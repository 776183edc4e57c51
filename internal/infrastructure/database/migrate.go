package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies all pending migrations to the store at target.
// An empty dir uses the embedded migrations for the target's driver.
func RunMigrations(target Target, dir string, logger *slog.Logger) error {
	var (
		m   *migrate.Migrate
		err error
	)
	if dir != "" {
		m, err = migrate.New("file://"+dir, target.MigrateURL)
	} else {
		var src fs.FS
		src, err = fs.Sub(migrationsFS, "migrations/"+string(target.Driver))
		if err == nil {
			m, err = newEmbedded(src, target.MigrateURL)
		}
	}
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()
	return up(m, logger)
}

// MigrateSQLite applies the embedded SQLite migrations to an open handle.
// It is used for in-memory databases, which a URL cannot reach twice.
func MigrateSQLite(db *sql.DB, logger *slog.Logger) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations/"+string(DriverSQLite))
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(DriverSQLite), driver)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	// Closing m would close db, which the caller still owns.
	return up(m, logger)
}

func newEmbedded(src fs.FS, url string) (*migrate.Migrate, error) {
	driver, err := iofs.New(src, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", driver, url)
}

func up(m *migrate.Migrate, logger *slog.Logger) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
