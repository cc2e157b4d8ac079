package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tss_resolver"

// Resolution outcomes used as the "result" label.
const (
	ResultResolved = "resolved" // At least one field was returned.
	ResultEmpty    = "empty"    // The call succeeded but nothing mapped.
	ResultInvalid  = "invalid"  // Bad id/type arguments.
	ResultError    = "error"    // Vault, parse or initialization failure.
)

// MetricsCollector holds all Prometheus metrics for the resolver.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Resolver facade.
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	FieldsResolved     *prometheus.HistogramVec

	// Vault client invocations.
	TSSExecutionsTotal   *prometheus.CounterVec
	TSSExecutionDuration *prometheus.HistogramVec

	// Process sandbox.
	SandboxExecutionsTotal   *prometheus.CounterVec
	SandboxExecutionDuration prometheus.Histogram

	InitializationsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total credential resolutions by type and outcome.",
		}, []string{"type", "result"}),

		ResolutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "End-to-end resolution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"type"}),

		FieldsResolved: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "fields_resolved",
			Help:      "Number of canonical fields returned per resolution.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		}, []string{"type"}),

		TSSExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tss",
			Name:      "executions_total",
			Help:      "Total tss client invocations by sub-command.",
		}, []string{"command", "status"}),

		TSSExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tss",
			Name:      "execution_duration_seconds",
			Help:      "tss client invocation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"command"}),

		SandboxExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total child processes started.",
		}, []string{"status"}),

		SandboxExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Child process wall time in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),

		InitializationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tss",
			Name:      "initializations_total",
			Help:      "Initialization attempts by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.FieldsResolved,
		m.TSSExecutionsTotal,
		m.TSSExecutionDuration,
		m.SandboxExecutionsTotal,
		m.SandboxExecutionDuration,
		m.InitializationsTotal,
	)

	return m
}

// RecordResolution records one facade call. Safe on a nil receiver.
func (m *MetricsCollector) RecordResolution(credType, result string, fields int, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(credType, result).Inc()
	m.ResolutionDuration.WithLabelValues(credType).Observe(d.Seconds())
	m.FieldsResolved.WithLabelValues(credType).Observe(float64(fields))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func (m *MetricsCollector) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
