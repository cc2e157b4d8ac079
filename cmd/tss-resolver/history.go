package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent resolutions from the audit database",
	Long: `History prints the most recent audit events, newest first, one JSON
object per line. It requires audit.driver sqlite or postgres.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	sc, err := bootstrap()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	if sc.Store == nil {
		return errors.New("history requires audit.driver sqlite or postgres")
	}

	events, err := sc.Store.Audit().Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
