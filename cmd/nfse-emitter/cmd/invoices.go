package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-emitter/internal/model"
)

var failedLimit int

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Inspect stored invoices",
}

var invoicesFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List invoices whose emission failed",
	Long: `List failed invoices, oldest first, with the gateway error recorded for each.

Examples:
  nfse-emitter invoices failed
  nfse-emitter invoices failed --limit 10 -f json`,
	RunE: runInvoicesFailed,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
	invoicesCmd.AddCommand(invoicesFailedCmd)

	invoicesFailedCmd.Flags().IntVar(&failedLimit, "limit", 50, "Maximum number of invoices")
}

func runInvoicesFailed(cmd *cobra.Command, args []string) error {
	if failedLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", failedLimit)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.invoices.ListByStatus(context.Background(), model.InvoiceStatusFailed, failedLimit)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tISSUER\tAMOUNT\tRETRIES\tERROR")
	for _, inv := range list {
		details := ""
		if inv.ErrorDetails != nil {
			details = *inv.ErrorDetails
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			inv.ID, inv.CreatedAt.Format("2006-01-02 15:04"), inv.IssuerCNPJ, inv.Amount.StringFixed(2), inv.RetryCount, details)
	}
	return w.Flush()
}
