package postgres

import (
	"time"
)

// AuditEventModel maps to the "resolution_audit_events" table.
// No UpdatedAt or DeletedAt: the audit log is append-only and immutable.
// Column types are kept portable so the SQLite backend can share the model.
type AuditEventModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	CorrelationID  string `gorm:"size:36;index"`
	SecretID       string `gorm:"size:64;not null"`
	CredentialType string `gorm:"size:128;not null;index"`
	Outcome        string `gorm:"size:16;not null"`
	Fields         string `gorm:"size:255"` // Comma-separated canonical names.
	Error          string `gorm:"type:text"`
	DurationMS     int64
	Version        string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"index"`
}

func (AuditEventModel) TableName() string { return "resolution_audit_events" }
