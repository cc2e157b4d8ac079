package tss

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const qualifierFixture = `datasource.secretServerUrl=https://vault.example.com/SecretServer
datasource.secretServerRule=mid-servers
datasource.secretServerKey=onboard-key-123
datasource.secretServerCacheStrat=2
datasource.secretServerCacheAge=30
`

type initFixture struct {
	dir       string
	marker    string
	qualifier string
}

func newInitFixture(t *testing.T, qualifier string) initFixture {
	t.Helper()
	dir := t.TempDir()
	f := initFixture{
		dir:       dir,
		marker:    filepath.Join(dir, "credentials.config"),
		qualifier: filepath.Join(dir, "qualifier.properties"),
	}
	if qualifier != "" {
		if err := os.WriteFile(f.qualifier, []byte(qualifier), 0600); err != nil {
			t.Fatalf("writing qualifier: %v", err)
		}
	}
	return f
}

func (f initFixture) initializer(client Client) *Initializer {
	return NewInitializer(InitializerConfig{
		MarkerPath:    f.marker,
		QualifierPath: f.qualifier,
	}, client, discardLogger())
}

// markerWritingClient simulates tss writing credentials.config on init.
func (f initFixture) markerWritingClient() *recordingClient {
	return &recordingClient{respond: func(args []string) (string, error) {
		if args[0] == CommandInit {
			return "", os.WriteFile(f.marker, []byte("{}"), 0600)
		}
		return "", nil
	}}
}

func TestEnsureInitialized_RunsInitAndCache(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	client := f.markerWritingClient()

	if err := f.initializer(client).EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	want := []string{
		"init --url https://vault.example.com/SecretServer -r mid-servers -k onboard-key-123",
		"cache --strategy 2 --age 30",
	}
	got := client.commands()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands = %q, want %q", got, want)
	}
	if _, err := os.Stat(f.qualifier); !os.IsNotExist(err) {
		t.Errorf("qualifier file should be deleted after init, stat err = %v", err)
	}
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	client := f.markerWritingClient()
	ini := f.initializer(client)

	for i := 0; i < 2; i++ {
		if err := ini.EnsureInitialized(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if n := len(client.commands()); n != 2 {
		t.Errorf("subprocess calls = %d, want 2 (init + cache on first call only)", n)
	}
}

func TestEnsureInitialized_MarkerPresentIsNoop(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	if err := os.WriteFile(f.marker, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	client := &recordingClient{}

	if err := f.initializer(client).EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if n := len(client.commands()); n != 0 {
		t.Errorf("subprocess calls = %d, want 0", n)
	}
	if _, err := os.Stat(f.qualifier); err != nil {
		t.Errorf("qualifier file must be left alone when already initialized: %v", err)
	}
}

func TestEnsureInitialized_KeyOptional(t *testing.T) {
	f := newInitFixture(t, "datasource.secretServerUrl=https://vault\ndatasource.secretServerRule=r1\n"+
		"datasource.secretServerCacheStrat=1\ndatasource.secretServerCacheAge=5\n")
	client := f.markerWritingClient()

	if err := f.initializer(client).EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if got := client.commands()[0]; got != "init --url https://vault -r r1" {
		t.Errorf("init command = %q", got)
	}
}

func TestEnsureInitialized_MissingSettings(t *testing.T) {
	f := newInitFixture(t, "")
	client := &recordingClient{}

	err := f.initializer(client).EnsureInitialized(context.Background())
	if !errors.Is(err, ErrInitSettings) {
		t.Fatalf("error = %v, want ErrInitSettings", err)
	}
	if n := len(client.commands()); n != 0 {
		t.Errorf("subprocess calls = %d, want 0", n)
	}
}

func TestEnsureInitialized_IncompleteSettings(t *testing.T) {
	f := newInitFixture(t, "datasource.secretServerRule=r1\n")

	err := f.initializer(&recordingClient{}).EnsureInitialized(context.Background())
	if !errors.Is(err, ErrInitSettings) {
		t.Fatalf("error = %v, want ErrInitSettings", err)
	}
}

func TestEnsureInitialized_InitFailurePropagates(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	client := &recordingClient{respond: func(args []string) (string, error) {
		return "", ErrExecution
	}}

	err := f.initializer(client).EnsureInitialized(context.Background())
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("error = %v, want ErrExecution", err)
	}
	if n := len(client.commands()); n != 1 {
		t.Errorf("subprocess calls = %d, want 1 (cache must not run after init failure)", n)
	}
	if _, err := os.Stat(f.qualifier); err != nil {
		t.Errorf("qualifier file must survive a failed init: %v", err)
	}
}

func TestEnsureInitialized_CacheFailurePropagates(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	client := &recordingClient{respond: func(args []string) (string, error) {
		if args[0] == CommandCache {
			return "", ErrExecution
		}
		return "", os.WriteFile(f.marker, []byte("{}"), 0600)
	}}

	err := f.initializer(client).EnsureInitialized(context.Background())
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("error = %v, want ErrExecution", err)
	}
	if _, err := os.Stat(f.qualifier); err != nil {
		t.Errorf("qualifier file must survive a failed cache call: %v", err)
	}
}

func TestEnsureInitialized_NoMarkerAfterInit(t *testing.T) {
	f := newInitFixture(t, qualifierFixture)
	client := &recordingClient{respond: func(args []string) (string, error) {
		return "Invalid onboarding key", nil
	}}

	err := f.initializer(client).EnsureInitialized(context.Background())
	if !errors.Is(err, ErrInitIncomplete) {
		t.Fatalf("error = %v, want ErrInitIncomplete", err)
	}
	if _, err := os.Stat(f.qualifier); err != nil {
		t.Errorf("qualifier file must be kept when init did not complete: %v", err)
	}
}
