// Package audit records one event per credential resolution.
// Events carry identifiers, outcomes and field names, never field values.
package audit

import (
	"context"
	"time"
)

// Outcomes of a resolution.
const (
	OutcomeResolved = "resolved"
	OutcomeEmpty    = "empty"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Event describes a single Resolve call.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	CorrelationID  string    `json:"correlation_id"`
	SecretID       string    `json:"secret_id"` // As received; may be invalid.
	CredentialType string    `json:"credential_type"`
	Outcome        string    `json:"outcome"`
	Fields         []string  `json:"fields,omitempty"` // Canonical names that were resolved.
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	Version        string    `json:"version,omitempty"`
}

// Sink receives audit events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// Store persists audit events. Append-only: there is no update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop is a Sink that discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
