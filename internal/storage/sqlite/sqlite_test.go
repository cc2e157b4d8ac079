package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jkaninda/tss-resolver/internal/audit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "db", "audit.db")}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_PingAndDriver(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if s.Driver() != "sqlite" {
		t.Errorf("Driver() = %q, want sqlite", s.Driver())
	}
}

func TestAudit_AppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	events := []audit.Event{
		{ID: "e1", Timestamp: base, SecretID: "1", CredentialType: "ssh", Outcome: audit.OutcomeEmpty},
		{ID: "e2", Timestamp: base.Add(time.Minute), SecretID: "2", CredentialType: "windows", Outcome: audit.OutcomeResolved, Fields: []string{"user", "pswd"}},
		{Timestamp: base.Add(2 * time.Minute), SecretID: "abc", CredentialType: "ssh", Outcome: audit.OutcomeInvalid, Error: "invalid id"},
	}
	for _, e := range events {
		if err := s.Audit().Append(ctx, e); err != nil {
			t.Fatalf("Append(%s): %v", e.ID, err)
		}
	}

	got, err := s.Audit().Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d events, want 2", len(got))
	}
	if got[0].SecretID != "abc" || got[0].ID == "" {
		t.Errorf("newest event = %+v, want generated id and secret abc", got[0])
	}
	if got[1].ID != "e2" || len(got[1].Fields) != 2 || got[1].Fields[1] != "pswd" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestAudit_DuplicateIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := audit.Event{ID: "same", Timestamp: time.Now().UTC(), Outcome: audit.OutcomeEmpty}
	if err := s.Audit().Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := s.Audit().Append(ctx, e); err == nil {
		t.Fatal("expected primary key violation on second Append")
	}
}

func TestAudit_ThroughStoreSink(t *testing.T) {
	s := openTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := audit.NewStoreSink(s.Audit(), nil, logger)

	if err := sink.Record(context.Background(), audit.Event{ID: "x", Timestamp: time.Now().UTC(), Outcome: audit.OutcomeError}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Audit().Recent(context.Background(), 0)
	if err != nil || len(got) != 1 || got[0].Outcome != audit.OutcomeError {
		t.Fatalf("Recent() = %+v, %v", got, err)
	}
}
