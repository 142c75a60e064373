package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/reference"
)

var (
	importFile string
	listUf     string
	showIbge   string
	showTom    string
)

var municipalitiesCmd = &cobra.Command{
	Use:   "municipalities",
	Short: "Manage the municipality reference table",
}

var municipalitiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import municipalities from a CSV file",
	Long: `Import municipalities from a CSV file with the header

  ibge_code,name,uf,tom_code,created_at,extinguished_at

Rows are upserted by IBGE code inside a single transaction, so a file with an
invalid row changes nothing.

Examples:
  nfse-emitter municipalities import --file municipios.csv`,
	RunE: runMunicipalitiesImport,
}

var municipalitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the municipalities of a state",
	Long: `List the municipalities of a state with their gateway (TOM) codes.

Examples:
  nfse-emitter municipalities list --uf SC
  nfse-emitter municipalities list --uf sc -f json`,
	RunE: runMunicipalitiesList,
}

var municipalitiesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one municipality by IBGE or TOM code",
	Long: `Show one municipality, looked up by its IBGE code or its gateway (TOM) code.

Examples:
  nfse-emitter municipalities show --ibge 4204301
  nfse-emitter municipalities show --tom 8105 -f json`,
	RunE: runMunicipalitiesShow,
}

func init() {
	rootCmd.AddCommand(municipalitiesCmd)
	municipalitiesCmd.AddCommand(municipalitiesImportCmd, municipalitiesListCmd, municipalitiesShowCmd)

	municipalitiesImportCmd.Flags().StringVar(&importFile, "file", "", "CSV file to import")
	_ = municipalitiesImportCmd.MarkFlagRequired("file")

	municipalitiesListCmd.Flags().StringVar(&listUf, "uf", "", "State abbreviation")
	_ = municipalitiesListCmd.MarkFlagRequired("uf")

	municipalitiesShowCmd.Flags().StringVar(&showIbge, "ibge", "", "IBGE code")
	municipalitiesShowCmd.Flags().StringVar(&showTom, "tom", "", "Gateway (TOM) code")
	municipalitiesShowCmd.MarkFlagsMutuallyExclusive("ibge", "tom")
	municipalitiesShowCmd.MarkFlagsOneRequired("ibge", "tom")
}

func runMunicipalitiesImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(importFile)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	printVerbose("Importing %s\n", importFile)

	n, err := reference.NewImporter(a.municipalities, a.tx, a.logger).Import(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d municipalities\n", n)
	return nil
}

func runMunicipalitiesList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	list, err := a.municipalities.ListByUf(context.Background(), strings.ToUpper(listUf))
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IBGE\tTOM\tUF\tNAME")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.IbgeCode, m.TomCode, m.Uf, m.Name)
	}
	return w.Flush()
}

func runMunicipalitiesShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var m *model.Municipality
	if showIbge != "" {
		m, err = a.municipalities.FindByIbgeCode(context.Background(), strings.TrimSpace(showIbge))
	} else {
		m, err = a.municipalities.FindByTomCode(context.Background(), strings.TrimSpace(showTom))
	}
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(m)
	}

	fmt.Printf("IBGE:         %s\n", m.IbgeCode)
	fmt.Printf("TOM:          %s\n", m.TomCode)
	fmt.Printf("Name:         %s\n", m.Name)
	fmt.Printf("UF:           %s\n", m.Uf)
	if m.ExtinguishedAt != nil {
		fmt.Printf("Extinguished: %s\n", *m.ExtinguishedAt)
	}
	return nil
}
