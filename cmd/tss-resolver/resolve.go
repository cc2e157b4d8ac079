package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jkaninda/tss-resolver/internal/resolver"
	"github.com/jkaninda/tss-resolver/internal/secrets"
)

var (
	resolveID     string
	resolveType   string
	resolveOutput string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a secret into the eight canonical credential fields",
	Long: `Resolve reads secret --id from Secret Server and prints the credential
fields mapped for --type. Fields that cannot be resolved are printed as null.

Resolution failures (missing client, stale registration, vault errors, unknown
types, invalid ids) are logged to stderr and still exit 0 with every field null,
so the MID server always receives a well-formed answer.

Examples:
  tss-resolver resolve --id 1234 --type ssh
  tss-resolver resolve --id 77 --type windows --output text`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveID, "id", "", "secret id (positive integer)")
	resolveCmd.Flags().StringVar(&resolveType, "type", "", "credential type, the prefix used in secretmap.properties")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "json", "output format: json or text")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	if resolveOutput != "json" && resolveOutput != "text" {
		return fmt.Errorf("unsupported output format %q (use json or text)", resolveOutput)
	}

	cred := resolver.EmptyCredential()

	sc, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	} else {
		defer sc.Cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cred = sc.Resolver.Resolve(ctx, map[string]string{
			resolver.ArgID:   resolveID,
			resolver.ArgType: resolveType,
		})
	}

	return writeCredential(cmd.OutOrStdout(), cred, resolveOutput)
}

// writeCredential prints cred as a JSON object (null for absent fields) or as
// an aligned name/value table.
func writeCredential(w io.Writer, cred resolver.Credential, format string) error {
	if format == "text" {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, name := range secrets.CanonicalFields {
			v, ok := cred.Value(name)
			if !ok {
				v = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\n", name, v)
		}
		return tw.Flush()
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(cred)
}
