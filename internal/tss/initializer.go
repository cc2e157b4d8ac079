package tss

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jkaninda/tss-resolver/internal/config"
)

// InitializerConfig locates the files the initializer works with.
type InitializerConfig struct {
	MarkerPath    string // Written by "tss init"; existence means the host is registered.
	QualifierPath string // One-time settings, removed after a successful init.
}

// Initializer registers the tss client with Secret Server once per host.
type Initializer struct {
	cfg    InitializerConfig
	client Client
	logger *slog.Logger
}

// NewInitializer creates an Initializer that runs init/cache through client.
func NewInitializer(cfg InitializerConfig, client Client, logger *slog.Logger) *Initializer {
	return &Initializer{cfg: cfg, client: client, logger: logger}
}

// Initialized reports whether the marker file exists.
func (i *Initializer) Initialized() bool {
	_, err := os.Stat(i.cfg.MarkerPath)
	return err == nil
}

// EnsureInitialized is a no-op when the marker exists. Otherwise it runs
// "init" then "cache" with the qualifier settings, verifies the marker and
// deletes the qualifier file. Any failure is returned; nothing is retried.
//
// A missing or incomplete qualifier file fails with ErrInitSettings before
// any command runs. The MID server resolver this replaces logged the missing
// file and still ran "init --url null", which can only fail against the vault.
func (i *Initializer) EnsureInitialized(ctx context.Context) error {
	if i.Initialized() {
		return nil
	}

	i.logger.InfoContext(ctx, "tss client not configured, initializing",
		slog.String("marker", i.cfg.MarkerPath),
	)

	props, err := config.LoadProperties(i.cfg.QualifierPath)
	if err != nil {
		i.logger.ErrorContext(ctx, "cannot load initialization settings",
			slog.String("path", i.cfg.QualifierPath),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrInitSettings, err)
	}
	settings := config.QualifierFromProperties(props)
	if settings.URL == "" || settings.Rule == "" {
		return fmt.Errorf("%w: %s and %s are required in %s", ErrInitSettings,
			config.KeySecretServerURL, config.KeySecretServerRule, i.cfg.QualifierPath)
	}

	if _, err := i.client.Run(ctx, InitArgs(settings.URL, settings.Rule, settings.OnboardingKey)...); err != nil {
		i.logger.ErrorContext(ctx, "tss init failed", slog.String("error", err.Error()))
		return fmt.Errorf("running tss init: %w", err)
	}
	if _, err := i.client.Run(ctx, CacheArgs(settings.CacheStrategy, settings.CacheAge)...); err != nil {
		i.logger.ErrorContext(ctx, "tss cache configuration failed", slog.String("error", err.Error()))
		return fmt.Errorf("running tss cache: %w", err)
	}

	if !i.Initialized() {
		i.logger.ErrorContext(ctx, "tss init ran but credentials were not stored; keeping settings file",
			slog.String("marker", i.cfg.MarkerPath),
			slog.String("settings", i.cfg.QualifierPath),
		)
		return fmt.Errorf("%w: %s was not created", ErrInitIncomplete, i.cfg.MarkerPath)
	}

	i.logger.InfoContext(ctx, "tss client initialized")
	i.removeSettings(ctx)
	return nil
}

// removeSettings deletes the qualifier file so the onboarding key does not stay on disk.
func (i *Initializer) removeSettings(ctx context.Context) {
	err := os.Remove(i.cfg.QualifierPath)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	i.logger.ErrorContext(ctx, "error deleting initialization settings",
		slog.String("path", i.cfg.QualifierPath),
		slog.String("error", err.Error()),
	)
}
