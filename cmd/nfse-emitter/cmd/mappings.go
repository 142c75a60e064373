package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect the service type tax mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active service type tax mappings",
	Long: `List the active mappings from service type key to tax codes.

Examples:
  nfse-emitter mappings list
  nfse-emitter mappings list -f json`,
	RunE: runMappingsList,
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsListCmd)
}

func runMappingsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.mappings.ListActive(context.Background())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCNAE\tNBS\tLC116\tOPERATION\tCST\tCLASS")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ServiceTypeKey, m.CnaeCode, m.NbsCode, m.ServiceListCode,
			m.OperationIndicator, m.TaxSituationCode, m.TaxClassificationCode)
	}
	return w.Flush()
}
