package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jkaninda/tss-resolver/internal/config"
	"github.com/jkaninda/tss-resolver/internal/observability"
	"github.com/jkaninda/tss-resolver/internal/secrets"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the local prerequisites of a resolution",
	Long: `Check verifies the install directory, the tss executable, the mapping
table, the client registration and, when configured, the audit database.
It prints a JSON report and exits 1 when any check fails. Secret Server
itself is not contacted.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	sc, err := bootstrap()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	var health *observability.HealthChecker
	if sc.Obs != nil {
		health = sc.Obs.Health
	}
	if health == nil {
		health = observability.NewHealthChecker(sc.Logger)
	}
	registerChecks(health, sc)

	status := health.Run(cmd.Context())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	if !status.Healthy() {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func registerChecks(h *observability.HealthChecker, sc *SharedComponents) {
	cfg := sc.Config

	h.AddCheck("install_dir", func(context.Context) error {
		dir := cfg.ResolvedInstallDir()
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	})

	h.AddCheck("executable", func(context.Context) error {
		info, err := os.Stat(cfg.ExecutablePath())
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", cfg.ExecutablePath())
		}
		return nil
	})

	h.AddCheck("mapping", func(context.Context) error {
		fm, err := secrets.LoadFieldMap(cfg.MappingPath())
		if err != nil {
			return err
		}
		if fm.Len() == 0 {
			return fmt.Errorf("%s has no entries", cfg.MappingPath())
		}
		return nil
	})

	h.AddCheck("registration", func(context.Context) error {
		if sc.Initializer.Initialized() {
			return nil
		}
		return pendingRegistration(cfg)
	})

	if sc.Store != nil {
		h.AddCheck("audit_store", sc.Store.Ping)
	}
}

// pendingRegistration reports whether an unregistered client can register on first use.
func pendingRegistration(cfg *config.Config) error {
	props, err := config.LoadProperties(cfg.QualifierPath())
	if err != nil {
		return fmt.Errorf("not registered and %w", err)
	}
	s := config.QualifierFromProperties(props)
	if s.URL == "" || s.Rule == "" {
		return errors.New("not registered and initialization settings are incomplete")
	}
	return nil
}
