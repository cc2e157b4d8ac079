// Package resolver is the call-and-return surface used by the orchestration
// platform: an argument map goes in, a map with exactly eight credential keys
// comes out. Every failure is logged here and turned into absent values.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/tss-resolver/internal/audit"
	"github.com/jkaninda/tss-resolver/internal/observability"
	"github.com/jkaninda/tss-resolver/internal/secrets"
)

// Argument names of a resolve request.
const (
	ArgID   = "id"
	ArgType = "type"
)

// ErrInvalidRequest is logged when id or type is missing or id is not a positive integer.
var ErrInvalidRequest = errors.New("invalid resolve request")

// Fetcher retrieves the mapped fields of a secret.
type Fetcher interface {
	Fetch(ctx context.Context, id secrets.SecretID, ct secrets.CredentialType) (secrets.Fields, error)
}

// Resolver is safe for concurrent use; it only holds immutable collaborators.
type Resolver struct {
	fetcher Fetcher
	logger  *slog.Logger
	version string

	metrics *observability.MetricsCollector
	tracer  trace.Tracer
	audit   audit.Sink
}

// New creates a Resolver. version is reported by Version.
func New(fetcher Fetcher, logger *slog.Logger, version string) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  logger,
		version: version,
		audit:   audit.Nop{},
	}
}

// WithMetrics records resolution metrics. nil disables them.
func (r *Resolver) WithMetrics(m *observability.MetricsCollector) *Resolver {
	r.metrics = m
	return r
}

// WithTracer wraps each resolution in a span. nil disables tracing.
func (r *Resolver) WithTracer(t trace.Tracer) *Resolver {
	r.tracer = t
	return r
}

// WithAudit sends one event per resolution to sink. nil disables auditing.
func (r *Resolver) WithAudit(sink audit.Sink) *Resolver {
	if sink == nil {
		sink = audit.Nop{}
	}
	r.audit = sink
	return r
}

// Version returns the build version.
func (r *Resolver) Version() string {
	return r.version
}

// Resolve returns the credential for args["id"] and args["type"].
// It never fails: the result always holds the eight canonical keys, with nil
// for every value that could not be resolved.
func (r *Resolver) Resolve(ctx context.Context, args map[string]string) (cred Credential) {
	start := time.Now()
	correlationID := uuid.NewString()
	rawID, rawType := strings.TrimSpace(args[ArgID]), strings.TrimSpace(args[ArgType])
	logger := r.logger.With(
		slog.String("correlation_id", correlationID),
		slog.String("secret_id", rawID),
		slog.String("type", rawType),
	)

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "resolver.resolve",
			trace.WithAttributes(
				attribute.String("correlation_id", correlationID),
				attribute.String("credential.type", rawType),
			))
		defer span.End()
	}

	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during resolution: %v", p)
			logger.ErrorContext(ctx, "resolution panicked", slog.Any("panic", p))
			cred = EmptyCredential()
		}
		r.finish(ctx, logger, event{
			correlationID: correlationID,
			secretID:      rawID,
			credType:      rawType,
			start:         start,
			cred:          cred,
			err:           err,
		})
	}()

	cred, err = r.resolve(ctx, logger, rawID, rawType)
	return cred
}

func (r *Resolver) resolve(ctx context.Context, logger *slog.Logger, rawID, rawType string) (Credential, error) {
	cred := EmptyCredential()

	if rawID == "" || rawType == "" {
		err := fmt.Errorf("%w: both %q and %q are required", ErrInvalidRequest, ArgID, ArgType)
		logger.ErrorContext(ctx, "rejecting resolve request", slog.String("error", err.Error()))
		return cred, err
	}
	id, err := secrets.ParseSecretID(rawID)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		logger.ErrorContext(ctx, "rejecting resolve request", slog.String("error", err.Error()))
		return cred, err
	}
	ct := secrets.CredentialType(rawType)

	fields, err := r.fetcher.Fetch(ctx, id, ct)
	if err != nil {
		logger.ErrorContext(ctx, "credential resolution failed", slog.String("error", err.Error()))
		return cred, err
	}

	for _, name := range secrets.CanonicalFields {
		if v, ok := fields.Get(ct, name); ok {
			cred[name] = &v
		}
	}
	return cred, nil
}

type event struct {
	correlationID string
	secretID      string
	credType      string
	start         time.Time
	cred          Credential
	err           error
}

// finish records metrics, the audit event and the span outcome.
func (r *Resolver) finish(ctx context.Context, logger *slog.Logger, e event) {
	elapsed := time.Since(e.start)
	resolved := e.cred.Resolved()

	outcome := audit.OutcomeResolved
	switch {
	case errors.Is(e.err, ErrInvalidRequest):
		outcome = audit.OutcomeInvalid
	case e.err != nil:
		outcome = audit.OutcomeError
	case len(resolved) == 0:
		outcome = audit.OutcomeEmpty
	}

	logger.InfoContext(ctx, "credential resolution finished",
		slog.String("outcome", outcome),
		slog.Int("fields", len(resolved)),
		slog.Duration("duration", elapsed),
	)

	r.metrics.RecordResolution(e.credType, outcome, len(resolved), elapsed)

	if r.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("resolver.outcome", outcome),
			attribute.Int("resolver.fields", len(resolved)),
		)
		if e.err != nil {
			span.RecordError(e.err)
			span.SetStatus(codes.Error, e.err.Error())
		}
	}

	ev := audit.Event{
		ID:             uuid.NewString(),
		Timestamp:      e.start.UTC(),
		CorrelationID:  e.correlationID,
		SecretID:       e.secretID,
		CredentialType: e.credType,
		Outcome:        outcome,
		Fields:         resolved,
		DurationMS:     elapsed.Milliseconds(),
		Version:        r.version,
	}
	if e.err != nil {
		ev.Error = e.err.Error()
	}
	if err := r.audit.Record(ctx, ev); err != nil {
		logger.WarnContext(ctx, "audit event not recorded", slog.String("error", err.Error()))
	}
}
