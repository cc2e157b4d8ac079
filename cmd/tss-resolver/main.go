// tss-resolver: resolves Secret Server secrets into ServiceNow MID server credentials.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tss-resolver",
	Short: "Resolve Secret Server secrets into MID server credentials.",
	Long: `tss-resolver bridges the ServiceNow MID server external credential contract
and Thycotic/Delinea Secret Server. It drives the local tss client to read a
secret and republishes it as the eight canonical credential fields
(user, pswd, pkey, passphrase, authprotocol, authkey, privprotocol, privkey).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file (or TSS_RESOLVER_CONFIG env)")
	rootCmd.AddCommand(resolveCmd, initCmd, checkCmd, mappingCmd, historyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
