package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-emitter/internal/model"
)

var (
	emitTest    bool
	emitTimeout time.Duration
)

var emitCmd = &cobra.Command{
	Use:   "emit [request.json...]",
	Short: "Emit invoices described in JSON files",
	Long: `Emit one invoice per JSON file. Each file holds the same request body
accepted by POST /api/v1/invoices.

Every file is validated, stored and submitted to the configured gateway
(ipm.mode). Files are processed in order and a failure does not stop the run.

Examples:
  nfse-emitter emit request.json
  nfse-emitter emit requests/*.json --test -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)

	emitCmd.Flags().BoolVar(&emitTest, "test", false, "Submit in gateway test mode")
	emitCmd.Flags().DurationVar(&emitTimeout, "timeout", time.Minute, "Timeout per invoice")
}

// EmitOutput is the outcome of emitting one file
type EmitOutput struct {
	File          string   `json:"file"`
	InvoiceID     string   `json:"invoice_id,omitempty"`
	Status        string   `json:"status"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	PdfURL        string   `json:"pdf_url,omitempty"`
	Messages      []string `json:"messages,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func runEmit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	emitter, err := a.emitter()
	if err != nil {
		return err
	}

	outputs := make([]EmitOutput, 0, len(args))
	failed := 0
	for _, file := range args {
		printVerbose("Emitting: %s\n", file)

		out := EmitOutput{File: file, Status: string(model.InvoiceStatusFailed)}
		req, err := readRequest(file)
		if err != nil {
			out.Error = err.Error()
			outputs = append(outputs, out)
			failed++
			continue
		}
		if emitTest {
			req.TestMode = true
		}

		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		result, err := emitter.Emit(ctx, *req)
		cancel()
		if err != nil {
			out.Error = err.Error()
			outputs = append(outputs, out)
			failed++
			continue
		}

		out.InvoiceID = result.Invoice.ID.String()
		out.Status = string(result.Invoice.Status)
		if result.Invoice.ExternalInvoiceID != nil {
			out.InvoiceNumber = *result.Invoice.ExternalInvoiceID
		}
		if result.Invoice.PdfURL != nil {
			out.PdfURL = *result.Invoice.PdfURL
		}
		if result.Submission != nil {
			out.Messages = result.Submission.Messages
		}
		if !result.Emitted() {
			failed++
		}
		outputs = append(outputs, out)
	}

	if err := printEmitOutputs(outputs); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d invoices were not emitted", failed, len(args))
	}
	return nil
}

func readRequest(file string) (*model.InvoiceRequest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var req model.InvoiceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

func printEmitOutputs(outputs []EmitOutput) error {
	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outputs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tINVOICE\tSTATUS\tNUMBER\tDETAILS")
	for _, o := range outputs {
		details := o.Error
		if details == "" {
			details = strings.Join(o.Messages, "; ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.File, o.InvoiceID, o.Status, o.InvoiceNumber, details)
	}
	return w.Flush()
}
