package postgres

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jkaninda/tss-resolver/internal/audit"
)

// Column sizes of AuditEventModel that hold caller input.
const (
	maxSecretIDLen       = 64
	maxCredentialTypeLen = 128
)

func toAuditModel(e audit.Event) AuditEventModel {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	return AuditEventModel{
		ID:             id,
		CorrelationID:  e.CorrelationID,
		SecretID:       truncate(e.SecretID, maxSecretIDLen),
		CredentialType: truncate(e.CredentialType, maxCredentialTypeLen),
		Outcome:        e.Outcome,
		Fields:         strings.Join(e.Fields, ","),
		Error:          e.Error,
		DurationMS:     e.DurationMS,
		Version:        e.Version,
		CreatedAt:      e.Timestamp,
	}
}

func toAuditDomain(m *AuditEventModel) audit.Event {
	var fields []string
	if m.Fields != "" {
		fields = strings.Split(m.Fields, ",")
	}
	return audit.Event{
		ID:             m.ID,
		Timestamp:      m.CreatedAt,
		CorrelationID:  m.CorrelationID,
		SecretID:       m.SecretID,
		CredentialType: m.CredentialType,
		Outcome:        m.Outcome,
		Fields:         fields,
		Error:          m.Error,
		DurationMS:     m.DurationMS,
		Version:        m.Version,
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
