// Package storage defines the database backends for the resolution audit trail.
// Two backends are provided: SQLite (single file next to the client) and
// PostgreSQL (shared across MID servers).
package storage

import (
	"context"

	"github.com/jkaninda/tss-resolver/internal/audit"
)

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is implemented by both backends.
type Store interface {
	Audit() audit.Store
	Ping(ctx context.Context) error
	Close() error
	Driver() string
}
