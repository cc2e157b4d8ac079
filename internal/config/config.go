// Package config handles loading and validating tss-resolver configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognised by the resolver.
const (
	EnvConfigPath = "TSS_RESOLVER_CONFIG"
	EnvLocation   = "TSS_LOCATION"
	EnvAuditDSN   = "TSS_RESOLVER_AUDIT_DSN"
)

// Default file names inside the install directory.
const (
	DefaultMarkerFile    = "credentials.config"
	DefaultQualifierFile = "qualifier.properties"
	DefaultMappingFile   = "secretmap.properties"
)

const defaultTimeoutSeconds = 30

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for the resolver.
// Every field is optional; a zero Config resolves to working defaults.
type Config struct {
	InstallDir    string               `json:"install_dir,omitempty" yaml:"install_dir,omitempty"` // Folder holding the tss client and properties files. Override: TSS_LOCATION env var.
	TSS           TSSConfig            `json:"tss" yaml:"tss"`
	Logging       LoggingConfig        `json:"logging" yaml:"logging"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
	Audit         *AuditConfig         `json:"audit,omitempty" yaml:"audit,omitempty"`                 // nil = no audit trail
}

// TSSConfig describes how the vault command-line client is invoked.
type TSSConfig struct {
	Executable     string   `json:"executable,omitempty" yaml:"executable,omitempty"`           // Default: tss.exe on Windows, tss elsewhere.
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // Per invocation. Default: 30.
	MarkerFile     string   `json:"marker_file,omitempty" yaml:"marker_file,omitempty"`         // Default: credentials.config
	QualifierFile  string   `json:"qualifier_file,omitempty" yaml:"qualifier_file,omitempty"`   // Default: qualifier.properties
	MappingFile    string   `json:"mapping_file,omitempty" yaml:"mapping_file,omitempty"`       // Default: secretmap.properties
	PassEnv        []string `json:"pass_env,omitempty" yaml:"pass_env,omitempty"`               // Host variables forwarded to the client.
}

// LoggingConfig controls the slog handler built by the CLI.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info (default), warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json (default) or text
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics. The resolver is a short-lived
// process, so metrics are written to a node_exporter textfile instead of served.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"` // e.g. /var/lib/node_exporter/tss_resolver.prom
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "tss-resolver"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`
}

// AuditConfig selects where resolution audit events are written.
// Events never contain secret values.
type AuditConfig struct {
	Driver string `json:"driver" yaml:"driver"`                   // "file" (default), "sqlite" or "postgres".
	Path   string `json:"path,omitempty" yaml:"path,omitempty"` // JSONL file or SQLite database path.
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`   // PostgreSQL DSN.
}

// AuditDriver returns the configured driver, defaulting to "file".
func (a *AuditConfig) AuditDriver() string {
	if a != nil && a.Driver != "" {
		return a.Driver
	}
	return "file"
}

// DefaultInstallDir returns the platform default location of the tss client.
func DefaultInstallDir() string {
	if runtime.GOOS == "windows" {
		return `C:\TSS`
	}
	return "/opt/tss"
}

// Default returns a Config with no file backing it, with environment overrides applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// TSS_LOCATION takes precedence over install_dir.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it is non-empty and falls back to Default otherwise.
// An empty path is replaced by TSS_RESOLVER_CONFIG when set.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = goutils.Env(EnvConfigPath, "")
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// applyEnv overrides file values with non-empty environment variables.
// A variable that is set but empty leaves the configured value alone.
func (c *Config) applyEnv() {
	if v := goutils.Env(EnvLocation, ""); v != "" {
		c.InstallDir = v
	}
	if c.Audit != nil {
		if v := goutils.Env(EnvAuditDSN, ""); v != "" {
			c.Audit.DSN = v
		}
	}
}

// ResolvedInstallDir returns the install directory, falling back to the platform default.
func (c *Config) ResolvedInstallDir() string {
	if c.InstallDir == "" {
		return DefaultInstallDir()
	}
	resolved, err := resolvePath(c.InstallDir)
	if err != nil {
		return c.InstallDir
	}
	return resolved
}

// ExecutableName returns the client file name.
func (t TSSConfig) ExecutableName() string {
	if t.Executable != "" {
		return t.Executable
	}
	if runtime.GOOS == "windows" {
		return "tss.exe"
	}
	return "tss"
}

// Timeout returns the per-invocation timeout.
func (t TSSConfig) Timeout() time.Duration {
	if t.TimeoutSeconds > 0 {
		return time.Duration(t.TimeoutSeconds) * time.Second
	}
	return defaultTimeoutSeconds * time.Second
}

// ExecutablePath returns the absolute path of the tss client.
func (c *Config) ExecutablePath() string {
	return filepath.Join(c.ResolvedInstallDir(), c.TSS.ExecutableName())
}

// MarkerPath returns the path of the file whose presence means the client is initialized.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.ResolvedInstallDir(), orDefault(c.TSS.MarkerFile, DefaultMarkerFile))
}

// QualifierPath returns the path of the one-time initialization settings.
func (c *Config) QualifierPath() string {
	return filepath.Join(c.ResolvedInstallDir(), orDefault(c.TSS.QualifierFile, DefaultQualifierFile))
}

// MappingPath returns the path of the type/field mapping table.
func (c *Config) MappingPath() string {
	return filepath.Join(c.ResolvedInstallDir(), orDefault(c.TSS.MappingFile, DefaultMappingFile))
}

// AuditLogPath returns the default audit path under the install directory.
func (c *Config) AuditLogPath() string {
	if c.Audit != nil && c.Audit.Path != "" {
		return c.Audit.Path
	}
	if c.Audit.AuditDriver() == "sqlite" {
		return filepath.Join(c.ResolvedInstallDir(), "audit.db")
	}
	return filepath.Join(c.ResolvedInstallDir(), "audit.jsonl")
}

func (c *Config) validate() error {
	if c.TSS.TimeoutSeconds < 0 {
		return fmt.Errorf("tss.timeout_seconds must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported (use debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not supported (use json or text)", c.Logging.Format)
	}
	if c.Audit != nil {
		switch c.Audit.AuditDriver() {
		case "file", "sqlite":
		case "postgres":
			if c.Audit.DSN == "" {
				return fmt.Errorf("audit.dsn is required for the postgres driver")
			}
		default:
			return fmt.Errorf("audit.driver %q is not supported (use file, sqlite or postgres)", c.Audit.Driver)
		}
	}
	if o := c.Observability; o != nil && o.Metrics != nil && o.Metrics.Enabled && o.Metrics.Textfile == "" {
		return fmt.Errorf("observability.metrics.textfile is required when metrics are enabled")
	}
	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
