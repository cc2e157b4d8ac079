package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/tss-resolver/internal/sandbox"
	"github.com/jkaninda/tss-resolver/internal/secrets"
	"github.com/jkaninda/tss-resolver/internal/tss"
)

// --- InstrumentedClient ---

// InstrumentedClient wraps a tss.Client with metrics and tracing.
// Arguments are never recorded: they may contain the onboarding key.
type InstrumentedClient struct {
	inner   tss.Client
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedClient wraps a vault client with observability.
func NewInstrumentedClient(inner tss.Client, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedClient {
	return &InstrumentedClient{
		inner:   inner,
		metrics: metrics,
		tracer:  ts.TracerOrNil(),
	}
}

func (c *InstrumentedClient) Run(ctx context.Context, args ...string) (string, error) {
	command := tss.CommandName(args)

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "tss.run",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("tss.command", command),
			))
		defer span.End()
	}

	start := time.Now()
	out, err := c.inner.Run(ctx, args...)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		if c.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else if c.tracer != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("tss.output_bytes", len(out)))
	}

	if c.metrics != nil {
		c.metrics.TSSExecutionsTotal.WithLabelValues(command, status).Inc()
		c.metrics.TSSExecutionDuration.WithLabelValues(command).Observe(duration)
	}

	return out, err
}

// --- InstrumentedSandbox ---

// InstrumentedSandbox wraps a sandbox.Sandbox with metrics and tracing.
type InstrumentedSandbox struct {
	inner   sandbox.Sandbox
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedSandbox wraps a sandbox with observability.
func NewInstrumentedSandbox(inner sandbox.Sandbox, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedSandbox {
	return &InstrumentedSandbox{
		inner:   inner,
		metrics: metrics,
		tracer:  ts.TracerOrNil(),
	}
}

func (s *InstrumentedSandbox) Execute(ctx context.Context, req sandbox.ExecutionRequest) (*sandbox.ExecutionResult, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "sandbox.execute",
			trace.WithAttributes(
				attribute.String("sandbox.timeout", req.Timeout.String()),
			))
		defer span.End()
	}

	start := time.Now()
	result, err := s.inner.Execute(ctx, req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		if s.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else if result != nil && result.ExitCode != 0 {
		status = "nonzero_exit"
		if s.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(attribute.Int("sandbox.exit_code", result.ExitCode))
		}
	}

	if s.metrics != nil {
		s.metrics.SandboxExecutionsTotal.WithLabelValues(status).Inc()
		s.metrics.SandboxExecutionDuration.Observe(duration)
	}

	return result, err
}

// --- InstrumentedInitializer ---

// InstrumentedInitializer counts initialization attempts.
// The no-op path (already initialized) is counted as "skipped".
type InstrumentedInitializer struct {
	inner   *tss.Initializer
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedInitializer wraps an initializer with observability.
func NewInstrumentedInitializer(inner *tss.Initializer, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedInitializer {
	return &InstrumentedInitializer{
		inner:   inner,
		metrics: metrics,
		tracer:  ts.TracerOrNil(),
	}
}

func (i *InstrumentedInitializer) EnsureInitialized(ctx context.Context) error {
	if i.inner.Initialized() {
		if i.metrics != nil {
			i.metrics.InitializationsTotal.WithLabelValues("skipped").Inc()
		}
		return nil
	}

	if i.tracer != nil {
		var span trace.Span
		ctx, span = i.tracer.Start(ctx, "tss.initialize")
		defer span.End()
	}

	err := i.inner.EnsureInitialized(ctx)

	result := "success"
	if err != nil {
		result = "error"
		if i.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if i.metrics != nil {
		i.metrics.InitializationsTotal.WithLabelValues(result).Inc()
	}
	return err
}

// --- Compile-time interface checks ---

var (
	_ tss.Client          = (*InstrumentedClient)(nil)
	_ sandbox.Sandbox     = (*InstrumentedSandbox)(nil)
	_ secrets.Initializer = (*InstrumentedInitializer)(nil)
)
