package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/tss-resolver/internal/tss"
)

// displayPlaceholder is what tss prints instead of file-typed field contents.
const displayPlaceholder = "not valid for display"

// Initializer makes sure the tss client is registered before secrets are read.
type Initializer interface {
	EnsureInitialized(ctx context.Context) error
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	MappingPath string // secretmap.properties, re-read on every Fetch.
}

// Fetcher reads a secret through the tss client and maps its fields.
// It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	cfg         FetcherConfig
	client      tss.Client
	initializer Initializer
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, client tss.Client, initializer Initializer, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:         cfg,
		client:      client,
		initializer: initializer,
		logger:      logger,
	}
}

// WithTracer enables spans for Fetch. A nil tracer disables them.
func (f *Fetcher) WithTracer(tracer trace.Tracer) *Fetcher {
	f.tracer = tracer
	return f
}

// Fetch returns the mapped fields of secret id for credential type ct.
//
// The returned Fields is never nil. It is empty, with a non-nil error, when
// the client cannot run, reports missing credentials (tss.ErrCredentialsNotPresent),
// answers with an error message (tss.ErrVaultError) or returns an undecodable
// record (tss.ErrMalformedResponse). An unknown type yields empty Fields and no error.
func (f *Fetcher) Fetch(ctx context.Context, id SecretID, ct CredentialType) (Fields, error) {
	if f.tracer != nil {
		var span trace.Span
		ctx, span = f.tracer.Start(ctx, "secrets.fetch",
			trace.WithAttributes(
				attribute.Int("secret.id", int(id)),
				attribute.String("credential.type", string(ct)),
			))
		defer span.End()
	}

	fields, err := f.fetch(ctx, id, ct)

	if f.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Int("secret.fields_resolved", len(fields)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	return fields, err
}

func (f *Fetcher) fetch(ctx context.Context, id SecretID, ct CredentialType) (Fields, error) {
	fm, err := LoadFieldMap(f.cfg.MappingPath)
	if err != nil {
		f.logger.WarnContext(ctx, "field mapping unavailable, no fields will be mapped",
			slog.String("path", f.cfg.MappingPath),
			slog.String("error", err.Error()),
		)
	}

	if err := f.initializer.EnsureInitialized(ctx); err != nil {
		return Fields{}, fmt.Errorf("initializing tss client: %w", err)
	}

	raw, err := f.client.Run(ctx, tss.SecretAllFieldsArgs(int(id))...)
	if err != nil {
		return Fields{}, fmt.Errorf("fetching secret %d: %w", id, err)
	}

	resp, err := tss.ParseResponse(raw)
	if err != nil {
		f.logger.ErrorContext(ctx, "secret response is not valid JSON",
			slog.Int("secret_id", int(id)),
			slog.String("error", err.Error()),
		)
		return Fields{}, fmt.Errorf("secret %d: %w", id, err)
	}

	switch resp.Kind {
	case tss.KindNotAuthenticated:
		// Not re-initialized here: the marker exists but tss disagrees, which needs an operator.
		f.logger.ErrorContext(ctx, "tss reports no stored credentials",
			slog.Int("secret_id", int(id)),
			slog.String("response", resp.Message),
		)
		return Fields{}, fmt.Errorf("secret %d: %w", id, tss.ErrCredentialsNotPresent)
	case tss.KindError:
		f.logger.ErrorContext(ctx, "tss returned an error",
			slog.Int("secret_id", int(id)),
			slog.String("response", resp.Message),
		)
		return Fields{}, fmt.Errorf("secret %d: %w: %s", id, tss.ErrVaultError, resp.Message)
	}

	f.logger.DebugContext(ctx, "mapping secret fields",
		slog.Int("secret_id", int(id)),
		slog.String("type", string(ct)),
		slog.Int("record_fields", len(resp.Record)),
	)
	return f.mapRecord(ctx, id, ct, fm, resp.Record), nil
}

// mapRecord applies the mapping rows of ct to rec.
func (f *Fetcher) mapRecord(ctx context.Context, id SecretID, ct CredentialType, fm *FieldMap, rec tss.Record) Fields {
	out := Fields{}

	var domainSlug string
	if name, ok := fm.Lookup(ct.Key(FieldDomain)); ok {
		domainSlug = Slug(name)
	}

	for _, m := range fm.ForType(ct) {
		slug := m.Slug()
		value, ok := rec[slug]
		if !ok {
			continue
		}

		if strings.Contains(m.Canonical, FieldUser) && domainSlug != "" {
			if domain := rec[domainSlug]; domain != "" {
				out[m.Key] = domain + `\` + value
				continue
			}
		}

		if strings.Contains(strings.ToLower(value), displayPlaceholder) {
			v, ok := f.fetchField(ctx, id, slug)
			if !ok {
				continue
			}
			value = v
		}
		out[m.Key] = value
	}
	return out
}

// fetchField reads one file-typed field directly. Failures leave the field
// absent rather than returning the placeholder text.
func (f *Fetcher) fetchField(ctx context.Context, id SecretID, slug string) (string, bool) {
	raw, err := f.client.Run(ctx, tss.SecretFieldArgs(int(id), slug)...)
	if err != nil {
		f.logger.WarnContext(ctx, "fetching file field failed, leaving it unset",
			slog.Int("secret_id", int(id)),
			slog.String("field", slug),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	value := strings.TrimRight(raw, "\r\n")
	if value == "" || strings.HasPrefix(value, tss.NotPresentSentinel) {
		f.logger.WarnContext(ctx, "file field returned no content, leaving it unset",
			slog.Int("secret_id", int(id)),
			slog.String("field", slug),
		)
		return "", false
	}
	return value, true
}
