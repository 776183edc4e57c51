package main

import (
	"context"
	"fmt"
	"log/slog"

	"opboard/internal/infrastructure/database"
	"opboard/internal/infrastructure/sqlite"
	"opboard/internal/ports/output"
)

// store is the persistence backend chosen by DATABASE_URL.
type store struct {
	events  output.EventRepository
	signups output.SignupRepository
	close   func()
}

// openStore connects to the database, applies migrations and builds the
// repositories. migrationsDir overrides the embedded migrations.
func openStore(ctx context.Context, rawURL, migrationsDir string, logger *slog.Logger) (*store, error) {
	target, err := database.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	logger = logger.With("driver", string(target.Driver))

	switch target.Driver {
	case database.DriverPostgres:
		if err := database.RunMigrations(target, migrationsDir, logger); err != nil {
			return nil, err
		}
		pool, err := database.NewPool(ctx, target.DSN, logger)
		if err != nil {
			return nil, err
		}
		return &store{
			events:  database.NewEventRepository(pool),
			signups: database.NewSignupRepository(pool),
			close:   pool.Close,
		}, nil

	case database.DriverSQLite:
		db, err := sqlite.Open(target.DSN)
		if err != nil {
			return nil, err
		}
		if target.InMemory() || migrationsDir == "" {
			err = database.MigrateSQLite(db, logger)
		} else {
			err = database.RunMigrations(target, migrationsDir, logger)
		}
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("sqlite store opened")
		return &store{
			events:  sqlite.NewEventRepository(db),
			signups: sqlite.NewSignupRepository(db),
			close:   func() { db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("database url: driver %q not wired", target.Driver)
}
