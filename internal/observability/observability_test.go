package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/tss-resolver/internal/config"
	"github.com/jkaninda/tss-resolver/internal/sandbox"
	"github.com/jkaninda/tss-resolver/internal/tss"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
	if obs.Health == nil {
		t.Error("health checker should always be created")
	}
}

func TestNew_UnsupportedTracingProtocol(t *testing.T) {
	_, err := New(&config.ObservabilityConfig{
		Tracing: &config.TracingConfig{Enabled: true, Protocol: "udp"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
}

func TestObservability_NilAccessors(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
	if obs.MetricsOrNil() != nil {
		t.Error("expected nil metrics from nil Observability")
	}

	var ts *TracerSetup
	if ts.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil TracerSetup")
	}
	if ts.Tracer() == nil {
		t.Error("Tracer() should fall back to a no-op tracer")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Registered(t *testing.T) {
	m := NewMetricsCollector()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Vectors only appear in Gather after first use.
	m.RecordResolution("ssh", ResultResolved, 2, 10*time.Millisecond)
	m.TSSExecutionsTotal.WithLabelValues(tss.CommandSecret, "success").Inc()
	m.SandboxExecutionsTotal.WithLabelValues("success").Inc()
	m.InitializationsTotal.WithLabelValues("skipped").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"tss_resolver_resolver_resolutions_total",
		"tss_resolver_resolver_resolution_duration_seconds",
		"tss_resolver_resolver_fields_resolved",
		"tss_resolver_tss_executions_total",
		"tss_resolver_sandbox_executions_total",
		"tss_resolver_tss_initializations_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordResolution(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordResolution("ssh", ResultResolved, 3, time.Millisecond)
	m.RecordResolution("ssh", ResultResolved, 1, time.Millisecond)
	m.RecordResolution("ssh", ResultError, 0, time.Millisecond)

	if got := counterValue(t, m.Registry, "tss_resolver_resolver_resolutions_total", prometheus.Labels{"type": "ssh", "result": ResultResolved}); got != 2 {
		t.Errorf("resolved = %v, want 2", got)
	}
	if got := counterValue(t, m.Registry, "tss_resolver_resolver_resolutions_total", prometheus.Labels{"type": "ssh", "result": ResultError}); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var m *MetricsCollector
	m.RecordResolution("ssh", ResultEmpty, 0, 0)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile on nil collector: %v", err)
	}
}

func TestMetricsCollector_WriteTextfile(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordResolution("windows", ResultResolved, 3, 20*time.Millisecond)

	path := filepath.Join(t.TempDir(), "tss_resolver.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), `tss_resolver_resolver_resolutions_total{result="resolved",type="windows"} 1`) {
		t.Errorf("textfile missing resolution counter:\n%s", data)
	}
}

func TestObservability_ShutdownWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.prom")
	obs, err := New(&config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true, Textfile: path},
	}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	obs.Metrics.RecordResolution("ssh", ResultEmpty, 0, time.Millisecond)

	obs.Shutdown(context.Background())

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

// --- HealthChecker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.Run(context.Background())
	if !status.Healthy() {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_AllPass(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("install_dir", func(ctx context.Context) error { return nil })
	h.AddCheck("executable", func(ctx context.Context) error { return nil })

	status := h.Run(context.Background())
	if status.Status != StatusOK {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Checks["install_dir"].Status != StatusOK {
		t.Errorf("install_dir check = %q, want ok", status.Checks["install_dir"].Status)
	}
}

func TestHealthChecker_OneFails(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("executable", func(ctx context.Context) error { return errors.New("tss not found") })
	h.AddCheck("mapping", func(ctx context.Context) error { return nil })

	status := h.Run(context.Background())
	if status.Healthy() {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if got := status.Checks["executable"]; got.Status != StatusFail || got.Message != "tss not found" {
		t.Errorf("executable check = %+v, want fail with message", got)
	}
	if status.Checks["mapping"].Status != StatusOK {
		t.Errorf("mapping check = %q, want ok", status.Checks["mapping"].Status)
	}
}

// --- InstrumentedClient (wrapper) ---

func TestInstrumentedClient_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	var got []string
	inner := tss.ClientFunc(func(_ context.Context, args ...string) (string, error) {
		got = args
		return `{"username":"root"}`, nil
	})

	c := NewInstrumentedClient(inner, metrics, nil)
	out, err := c.Run(context.Background(), tss.SecretAllFieldsArgs(7)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"username":"root"}` {
		t.Errorf("output = %q", out)
	}
	if strings.Join(got, " ") != "secret -s 7 -ad" {
		t.Errorf("inner args = %v", got)
	}

	val := counterValue(t, metrics.Registry, "tss_resolver_tss_executions_total", prometheus.Labels{"command": "secret", "status": "success"})
	if val != 1 {
		t.Errorf("executions_total = %v, want 1", val)
	}
}

func TestInstrumentedClient_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := tss.ClientFunc(func(context.Context, ...string) (string, error) {
		return "", tss.ErrExecutableNotFound
	})

	c := NewInstrumentedClient(inner, metrics, nil)
	_, err := c.Run(context.Background(), tss.CacheArgs("server", "10")...)
	if !errors.Is(err, tss.ErrExecutableNotFound) {
		t.Fatalf("err = %v, want ErrExecutableNotFound", err)
	}

	val := counterValue(t, metrics.Registry, "tss_resolver_tss_executions_total", prometheus.Labels{"command": "cache", "status": "error"})
	if val != 1 {
		t.Errorf("error executions_total = %v, want 1", val)
	}
}

func TestInstrumentedClient_NilMetrics(t *testing.T) {
	inner := tss.ClientFunc(func(context.Context, ...string) (string, error) { return "ok", nil })

	// nil metrics, should not panic.
	c := NewInstrumentedClient(inner, nil, nil)
	out, err := c.Run(context.Background(), "secret")
	if err != nil || out != "ok" {
		t.Fatalf("Run() = %q, %v", out, err)
	}
}

// --- InstrumentedSandbox (wrapper) ---

type mockSandbox struct {
	result *sandbox.ExecutionResult
	err    error
}

func (m *mockSandbox) Execute(ctx context.Context, req sandbox.ExecutionRequest) (*sandbox.ExecutionResult, error) {
	return m.result, m.err
}

func TestInstrumentedSandbox_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		inner  *mockSandbox
		status string
	}{
		{"success", &mockSandbox{result: &sandbox.ExecutionResult{ExitCode: 0}}, "success"},
		{"nonzero", &mockSandbox{result: &sandbox.ExecutionResult{ExitCode: 3}}, "nonzero_exit"},
		{"error", &mockSandbox{err: sandbox.ErrTimeout}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetricsCollector()
			s := NewInstrumentedSandbox(tt.inner, metrics, nil)
			_, _ = s.Execute(context.Background(), sandbox.ExecutionRequest{Command: []string{"tss"}})

			val := counterValue(t, metrics.Registry, "tss_resolver_sandbox_executions_total", prometheus.Labels{"status": tt.status})
			if val != 1 {
				t.Errorf("sandbox executions{status=%s} = %v, want 1", tt.status, val)
			}
		})
	}
}

// --- InstrumentedInitializer (wrapper) ---

func TestInstrumentedInitializer_Skipped(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "credentials.config")
	if err := os.WriteFile(marker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	calls := 0
	client := tss.ClientFunc(func(context.Context, ...string) (string, error) {
		calls++
		return "", nil
	})
	inner := tss.NewInitializer(tss.InitializerConfig{
		MarkerPath:    marker,
		QualifierPath: filepath.Join(dir, "qualifier.properties"),
	}, client, discardLogger())

	metrics := NewMetricsCollector()
	i := NewInstrumentedInitializer(inner, metrics, nil)
	if err := i.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("client called %d times, want 0", calls)
	}
	if val := counterValue(t, metrics.Registry, "tss_resolver_tss_initializations_total", prometheus.Labels{"result": "skipped"}); val != 1 {
		t.Errorf("skipped = %v, want 1", val)
	}
}

func TestInstrumentedInitializer_Error(t *testing.T) {
	dir := t.TempDir()
	client := tss.ClientFunc(func(context.Context, ...string) (string, error) { return "", nil })
	inner := tss.NewInitializer(tss.InitializerConfig{
		MarkerPath:    filepath.Join(dir, "credentials.config"),
		QualifierPath: filepath.Join(dir, "qualifier.properties"),
	}, client, discardLogger())

	metrics := NewMetricsCollector()
	i := NewInstrumentedInitializer(inner, metrics, nil)
	if err := i.EnsureInitialized(context.Background()); !errors.Is(err, tss.ErrInitSettings) {
		t.Fatalf("err = %v, want ErrInitSettings", err)
	}
	if val := counterValue(t, metrics.Registry, "tss_resolver_tss_initializations_total", prometheus.Labels{"result": "error"}); val != 1 {
		t.Errorf("error = %v, want 1", val)
	}
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
