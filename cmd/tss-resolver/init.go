package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Register the tss client with Secret Server",
	Long: `Init runs the one-time registration of the local tss client using
qualifier.properties from the install directory, configures its cache and then
deletes the settings file. It does nothing when the client is already registered.

Resolve performs the same step on demand; this command lets an operator run it
ahead of time and see the result.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	sc, err := bootstrap()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	marker := sc.Config.MarkerPath()
	if sc.Initializer.Initialized() {
		fmt.Fprintf(cmd.OutOrStdout(), "tss client already initialized (%s)\n", marker)
		return nil
	}

	if err := sc.Initializer.EnsureInitialized(cmd.Context()); err != nil {
		return fmt.Errorf("initializing tss client: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tss client initialized (%s)\n", marker)
	return nil
}
