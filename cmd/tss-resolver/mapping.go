package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jkaninda/tss-resolver/internal/secrets"
)

var mappingType string

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Show the field mapping table",
	Long: `Mapping prints the rows of secretmap.properties for --type, or for every
type when --type is omitted, together with the field slug tss is queried with.
Secret Server is not contacted.`,
	RunE: runMapping,
}

func init() {
	mappingCmd.Flags().StringVar(&mappingType, "type", "", "credential type to show (default: all)")
}

func runMapping(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fm, err := secrets.LoadFieldMap(cfg.MappingPath())
	if err != nil {
		return err
	}

	types := fm.Types()
	if mappingType != "" {
		types = []secrets.CredentialType{secrets.CredentialType(mappingType)}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tFIELD\tSECRET SERVER FIELD\tSLUG")
	rows := 0
	for _, ct := range types {
		for _, m := range fm.ForType(ct) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ct, m.Canonical, m.Field, m.Slug())
			rows++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if rows == 0 && mappingType != "" {
		fmt.Fprintf(os.Stderr, "no mapping rows for type %q in %s\n", mappingType, cfg.MappingPath())
	}
	return nil
}
