package database

import (
	"fmt"
	"strings"
)

// Driver names a supported store backend. It doubles as the directory of
// the backend's embedded migrations.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// sqliteParams enables foreign keys (for the signup cascade) and waits on
// a locked database instead of failing.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

// Target is a parsed DATABASE_URL.
type Target struct {
	Driver Driver
	// DSN is what the driver's own Open expects.
	DSN string
	// MigrateURL is the same store as a golang-migrate database URL.
	MigrateURL string
}

// ParseURL accepts postgres://, postgresql://, sqlite:// and file: URLs.
func ParseURL(raw string) (Target, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Target{Driver: DriverPostgres, DSN: raw, MigrateURL: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqliteTarget(strings.TrimPrefix(raw, "sqlite://"))
	case strings.HasPrefix(raw, "file:"):
		return sqliteTarget(raw)
	default:
		return Target{}, fmt.Errorf("database url: unsupported scheme in %q", redact(raw))
	}
}

func sqliteTarget(path string) (Target, error) {
	if path == "" || path == "file:" {
		return Target{}, fmt.Errorf("database url: sqlite path is empty")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return Target{
		Driver:     DriverSQLite,
		DSN:        path + sep + sqliteParams,
		MigrateURL: "sqlite3://" + strings.TrimPrefix(path, "file:"),
	}, nil
}

// InMemory reports whether the target is a private in-memory SQLite
// database.
func (t Target) InMemory() bool {
	return t.Driver == DriverSQLite && strings.Contains(t.DSN, ":memory:")
}

// redact hides everything after the scheme, which may hold credentials.
func redact(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		return raw[:i+3] + "…"
	}
	if len(raw) > 8 {
		return raw[:8] + "…"
	}
	return raw
}
