package database

import (
	"strings"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw        string
		driver     Driver
		dsn        string
		migrateURL string
		inMemory   bool
	}{
		{
			raw:        "postgres://bot:secret@db:5432/opboard?sslmode=disable",
			driver:     DriverPostgres,
			dsn:        "postgres://bot:secret@db:5432/opboard?sslmode=disable",
			migrateURL: "postgres://bot:secret@db:5432/opboard?sslmode=disable",
		},
		{
			raw:        "sqlite://data/opboard.db",
			driver:     DriverSQLite,
			dsn:        "data/opboard.db?" + sqliteParams,
			migrateURL: "sqlite3://data/opboard.db",
		},
		{
			raw:        "file:opboard.db?cache=shared",
			driver:     DriverSQLite,
			dsn:        "file:opboard.db?cache=shared&" + sqliteParams,
			migrateURL: "sqlite3://opboard.db?cache=shared",
		},
		{
			raw:        "sqlite://:memory:",
			driver:     DriverSQLite,
			dsn:        ":memory:?" + sqliteParams,
			migrateURL: "sqlite3://:memory:",
			inMemory:   true,
		},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			got, err := ParseURL(test.raw)
			if err != nil {
				t.Fatalf("ParseURL: %v", err)
			}
			if got.Driver != test.driver || got.DSN != test.dsn || got.MigrateURL != test.migrateURL {
				t.Errorf("ParseURL = %+v", got)
			}
			if got.InMemory() != test.inMemory {
				t.Errorf("InMemory() = %v, want %v", got.InMemory(), test.inMemory)
			}
		})
	}
}

func TestParseURLRejects(t *testing.T) {
	for _, raw := range []string{"", "mysql://root:hunter2@db/ops", "sqlite://"} {
		_, err := ParseURL(raw)
		if err == nil {
			t.Errorf("ParseURL(%q) succeeded", raw)
			continue
		}
		if strings.Contains(err.Error(), "hunter2") {
			t.Errorf("ParseURL(%q) leaked credentials: %v", raw, err)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, driver := range []Driver{DriverPostgres, DriverSQLite} {
		entries, err := migrationsFS.ReadDir("migrations/" + string(driver))
		if err != nil {
			t.Fatalf("%s migrations: %v", driver, err)
		}
		if len(entries) < 2 {
			t.Errorf("%s has %d migration files, want up and down", driver, len(entries))
		}
	}
}
