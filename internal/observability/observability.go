// Package observability provides Prometheus metrics, OpenTelemetry tracing
// and health checks for tss-resolver.
// All components are optional and nil-safe: when disabled, wrappers
// skip recording with a single nil check per operation.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/tss-resolver/internal/config"
)

// Observability is the top-level facade holding all observability components.
// Any field may be nil when that feature is disabled.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Health  *HealthChecker

	textfile string
	logger   *slog.Logger
}

// New creates an Observability instance from config.
// Returns nil when the config is nil (all features disabled).
func New(cfg *config.ObservabilityConfig, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{logger: logger}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
		obs.textfile = cfg.Metrics.Textfile
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	// Checks are registered by the check command.
	obs.Health = NewHealthChecker(logger)

	return obs, nil
}

// Shutdown writes the metrics textfile and flushes pending spans.
// Failures are logged; the resolution result has already been produced.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Metrics != nil && o.textfile != "" {
		if err := o.Metrics.WriteTextfile(o.textfile); err != nil && o.logger != nil {
			o.logger.WarnContext(ctx, "writing metrics textfile failed",
				slog.String("path", o.textfile),
				slog.String("error", err.Error()),
			)
		}
	}
	if o.Tracer != nil {
		if err := o.Tracer.Shutdown(ctx); err != nil && o.logger != nil {
			o.logger.WarnContext(ctx, "flushing traces failed", slog.String("error", err.Error()))
		}
	}
}

// TracerOrNil returns the OTel tracer setup or nil if tracing is disabled.
func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}

// MetricsOrNil returns the collector or nil if metrics are disabled.
func (o *Observability) MetricsOrNil() *MetricsCollector {
	if o == nil {
		return nil
	}
	return o.Metrics
}
