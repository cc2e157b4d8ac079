package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jkaninda/tss-resolver/internal/audit"
	"github.com/jkaninda/tss-resolver/internal/config"
	"github.com/jkaninda/tss-resolver/internal/observability"
	"github.com/jkaninda/tss-resolver/internal/resolver"
	"github.com/jkaninda/tss-resolver/internal/sandbox"
	"github.com/jkaninda/tss-resolver/internal/secrets"
	"github.com/jkaninda/tss-resolver/internal/storage"
	pgstore "github.com/jkaninda/tss-resolver/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/tss-resolver/internal/storage/sqlite"
	"github.com/jkaninda/tss-resolver/internal/tss"
)

// SharedComponents holds the wired resolution pipeline. Built once by
// initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger

	Obs         *observability.Observability
	Store       storage.Store // nil unless audit.driver is sqlite or postgres.
	Audit       audit.Sink
	Client      tss.Client
	Initializer *tss.Initializer
	Fetcher     *secrets.Fetcher
	Resolver    *resolver.Resolver

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// loadConfig resolves the config from --config, TSS_RESOLVER_CONFIG or defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr: stdout
// carries the resolve result.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initShared wires config, observability, audit and the resolution pipeline.
// Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}
	metrics, ts := obs.MetricsOrNil(), obs.TracerOrNil()

	sink, err := initAudit(sc, cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing audit: %w", err)
	}
	sc.Audit = sink
	sc.addCleanup(func() {
		if err := sink.Close(); err != nil {
			logger.Error("closing audit sink", slog.String("error", err.Error()))
		}
	})

	installDir := cfg.ResolvedInstallDir()

	var sbx sandbox.Sandbox = sandbox.NewProcessSandbox(sandbox.ProcessConfig{
		DefaultTimeout: cfg.TSS.Timeout(),
		PassEnv:        cfg.TSS.PassEnv,
	}, logger)
	sbx = observability.NewInstrumentedSandbox(sbx, metrics, ts)

	var client tss.Client = tss.NewCLIClient(tss.CLIConfig{
		Executable: cfg.ExecutablePath(),
		WorkDir:    installDir,
		Timeout:    cfg.TSS.Timeout(),
	}, sbx, logger)
	client = observability.NewInstrumentedClient(client, metrics, ts)
	sc.Client = client

	sc.Initializer = tss.NewInitializer(tss.InitializerConfig{
		MarkerPath:    cfg.MarkerPath(),
		QualifierPath: cfg.QualifierPath(),
	}, client, logger)

	sc.Fetcher = secrets.NewFetcher(secrets.FetcherConfig{
		MappingPath: cfg.MappingPath(),
	}, client, observability.NewInstrumentedInitializer(sc.Initializer, metrics, ts), logger).
		WithTracer(ts.TracerOrNil())

	sc.Resolver = resolver.New(sc.Fetcher, logger, version).
		WithMetrics(metrics).
		WithTracer(ts.TracerOrNil()).
		WithAudit(sink)

	logger.Debug("resolver initialized",
		slog.String("install_dir", installDir),
		slog.String("executable", cfg.ExecutablePath()),
		slog.Duration("timeout", cfg.TSS.Timeout()),
	)
	return sc, nil
}

// initAudit opens the configured audit sink. No audit section means no trail.
func initAudit(sc *SharedComponents, cfg *config.Config, logger *slog.Logger) (audit.Sink, error) {
	if cfg.Audit == nil {
		return audit.Nop{}, nil
	}

	switch driver := cfg.Audit.AuditDriver(); driver {
	case "file":
		sink, err := audit.NewFileSink(cfg.AuditLogPath(), logger)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case storage.DriverSQLite, storage.DriverPostgres:
		store, err := initStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		sc.Store = store
		return audit.NewStoreSink(store.Audit(), store, logger), nil
	default:
		return nil, fmt.Errorf("unknown audit driver: %q", driver)
	}
}

func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Audit.AuditDriver() {
	case storage.DriverPostgres:
		return pgstore.Open(pgstore.Config{DSN: cfg.Audit.DSN}, logger)
	default:
		return sqlitestore.Open(sqlitestore.Config{Path: cfg.AuditLogPath()}, logger)
	}
}

// bootstrap loads config and wires the pipeline for a command.
func bootstrap() (*SharedComponents, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging, os.Stderr)
	return initShared(cfg, logger)
}
