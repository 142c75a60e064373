package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	buildTest    bool
	buildOutput  string
	buildTimeout time.Duration
)

var buildCmd = &cobra.Command{
	Use:   "build <invoice-id>",
	Short: "Print the gateway document of a stored invoice",
	Long: `Rebuild the IPM document of a stored invoice without submitting it.
Reference data and tax rates are read as they are now, so the document may
differ from the one originally submitted.

Examples:
  nfse-emitter build 3f2b8c1e-2a7d-4c55-9a0e-6f1d2b3c4d5e
  nfse-emitter build 3f2b8c1e-2a7d-4c55-9a0e-6f1d2b3c4d5e --test -o nfse.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildTest, "test", false, "Mark the document for gateway test mode")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output file (default: stdout)")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 30*time.Second, "Build timeout")
}

func runBuild(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid invoice id %q: %w", args[0], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	emitter, err := a.emitter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	doc, err := emitter.Preview(ctx, id, buildTest)
	if err != nil {
		return err
	}

	if buildOutput == "" {
		fmt.Println(doc)
		return nil
	}
	if err := os.WriteFile(buildOutput, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	printVerbose("Document written to %s\n", buildOutput)
	return nil
}
