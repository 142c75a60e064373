package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-emitter/internal/database"
)

var seedData bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create or update the invoices, municipalities and service type tax mapping
tables. Unless --seed=false (or database.seed=false), the default service type
mapping and a small set of municipalities are inserted; existing rows are kept.

Examples:
  nfse-emitter migrate
  nfse-emitter migrate --seed=false`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&seedData, "seed", true, "Insert reference data")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.Migrate(a.db); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")

	seed := a.cfg.Database.Seed
	if cmd.Flags().Changed("seed") {
		seed = seedData
	}
	if !seed {
		return nil
	}

	if err := database.Seed(context.Background(), a.db); err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}
	fmt.Println("Reference data seeded")
	return nil
}
