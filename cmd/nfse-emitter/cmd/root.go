package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	cfgFile      string
	envFile      string
)

var rootCmd = &cobra.Command{
	Use:   "nfse-emitter",
	Short: "Emit Brazilian service invoices (NFS-e) through the IPM gateway",
	Long: `nfse-emitter builds NFS-e documents in the layout accepted by the IPM
municipal gateway, submits them and keeps track of every emission.

Configuration is read from config.toml, a .env file and NFSE_ environment
variables (for example NFSE_TAX_CBS=0.009). Tax rates and
xml.item_rate_source have no defaults and must be set.

Examples:
  # Create the schema and seed reference data
  nfse-emitter migrate

  # Start the HTTP API
  nfse-emitter serve --address :8080

  # Emit an invoice described in a JSON file
  nfse-emitter emit request.json

  # Print the document of a stored invoice in gateway test mode
  nfse-emitter build 3f2b8c1e-2a7d-4c55-9a0e-6f1d2b3c4d5e --test`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file loaded before reading the environment (default: ./.env)")
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
