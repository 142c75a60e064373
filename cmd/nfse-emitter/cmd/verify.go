package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-emitter/internal/ipm"
)

var caFile string

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify the signature of signed documents",
	Long: `Verify the enveloped XML signature of documents signed for the gateway.

Without --ca-file the certificate embedded in each document is used, which
proves the document was not altered but not who signed it.

Examples:
  nfse-emitter verify nfse.xml
  nfse-emitter verify --ca-file ac-raiz.pem nfse.xml
  nfse-emitter verify -f json signed/*.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&caFile, "ca-file", "", "Trusted certificates (PEM format)")
}

// VerifyOutput holds the result of verifying a single file
type VerifyOutput struct {
	File string `json:"file"`
	*ipm.VerificationResult
}

func runVerify(cmd *cobra.Command, args []string) error {
	roots, err := ipm.LoadTrustedRoots(caFile)
	if err != nil {
		return err
	}
	verifier := ipm.NewVerifier(nil, roots...)

	results := make([]VerifyOutput, 0, len(args))
	allValid := true
	for _, file := range args {
		printVerbose("Verifying: %s\n", file)

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		result := verifier.Verify(data)
		if !result.Valid {
			allValid = false
		}
		results = append(results, VerifyOutput{File: file, VerificationResult: result})
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			statusIcon, statusText := "✓", "VALID"
			if !r.Valid {
				statusIcon, statusText = "✗", "INVALID"
			}
			fmt.Printf("%s %s: %s\n", statusIcon, r.File, statusText)

			if r.Signer != nil {
				fmt.Printf("  Signer: %s\n", r.Signer.Name)
				if r.Signer.Issuer != "" {
					fmt.Printf("  Issuer: %s\n", r.Signer.Issuer)
				}
			}
			for _, e := range r.Errors {
				fmt.Printf("  ✗ %s\n", e)
			}
			for _, w := range r.Warnings {
				fmt.Printf("  ⚠ %s\n", w)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("verification failed for some files")
	}
	return nil
}
