package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"partlinker/internal/config"
	"partlinker/internal/types"
)

var bomCmd = &cobra.Command{
	Use:   "bom",
	Short: "Generate a sourced bill of materials",
	Long: `Load the design, merge the configured inventory sources, match every
component against the merged inventory, and print the resulting bill of
materials with the selected sourcing data.

Unmatched components are listed with an empty part column; they are a
normal outcome, not an error.

Examples:
  partlinker bom -i lab.csv -i distributor.yaml
  partlinker bom --format csv > bom.csv
  partlinker bom --format json --tolerance 10`,
	RunE: runBOM,
}

var bomFormat string

func init() {
	rootCmd.AddCommand(bomCmd)

	addPipelineFlags(bomCmd)
	bomCmd.Flags().StringVarP(&bomFormat, "format", "f", "table", "Output format (table, csv, json, yaml)")
}

// bomLine is one output row of the bill of materials.
type bomLine struct {
	Reference    string `json:"reference" yaml:"reference"`
	Value        string `json:"value" yaml:"value"`
	Package      string `json:"package,omitempty" yaml:"package,omitempty"`
	IPN          string `json:"ipn,omitempty" yaml:"ipn,omitempty"`
	Distributor  string `json:"distributor,omitempty" yaml:"distributor,omitempty"`
	DPN          string `json:"dpn,omitempty" yaml:"dpn,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	MFGPN        string `json:"mfgpn,omitempty" yaml:"mfgpn,omitempty"`
	Source       string `json:"source,omitempty" yaml:"source,omitempty"`
	Reason       string `json:"reason" yaml:"reason"`
	Score        int    `json:"score" yaml:"score"`
}

func runBOM(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	run, err := runPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	printWarnings(run.Warnings)

	lines := bomLines(run)

	switch strings.ToLower(bomFormat) {
	case "table":
		return outputBOMTable(lines, run)
	case "csv":
		return outputBOMCSV(lines)
	case "json":
		return outputBOMJSON(lines)
	case "yaml":
		return outputBOMYAML(lines)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, csv, json, yaml)", bomFormat)
	}
}

func bomLines(run *pipelineRun) []bomLine {
	byUUID := make(map[string]types.Component, len(run.Design.Components))
	for _, comp := range run.Design.Components {
		byUUID[comp.UUID] = comp
	}

	lines := make([]bomLine, 0, len(run.Results))
	for _, result := range run.Results {
		comp := byUUID[result.UUID]
		line := bomLine{
			Reference: result.Reference,
			Value:     comp.Value,
			Package:   comp.Footprint,
			Reason:    result.Reason,
			Score:     result.Score,
		}
		if result.Matched() {
			line.IPN = result.Winner.IPN
			line.Distributor = result.Winner.Distributor
			line.DPN = result.Winner.DPN
			line.Manufacturer = result.Winner.Manufacturer
			line.MFGPN = result.Winner.MFGPN
			line.Source = result.Winner.Source
		}
		lines = append(lines, line)
	}

	return lines
}

func outputBOMTable(lines []bomLine, run *pipelineRun) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "REF\tVALUE\tPACKAGE\tIPN\tDISTRIBUTOR\tDPN\tREASON\tSCORE")

	matched := 0
	for _, line := range lines {
		if line.IPN != "" {
			matched++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			line.Reference, line.Value, line.Package,
			line.IPN, line.Distributor, line.DPN,
			line.Reason, line.Score)
	}

	fmt.Fprintf(w, "\nTotal: %d components, %d matched, %d unmatched\n",
		len(lines), matched, len(run.Mismatches.Unmatched))

	if len(run.Mismatches.OrphanPlacements) > 0 {
		fmt.Fprintf(w, "Orphan placements: %s\n", strings.Join(run.Mismatches.OrphanPlacements, ", "))
	}
	if len(run.Mismatches.OrphanComponents) > 0 {
		fmt.Fprintf(w, "Unplaced components: %s\n", strings.Join(run.Mismatches.OrphanComponents, ", "))
	}

	return nil
}

func outputBOMCSV(lines []bomLine) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"reference", "value", "package", "ipn", "distributor", "dpn", "manufacturer", "mfgpn", "source", "reason", "score"}); err != nil {
		return err
	}
	for _, line := range lines {
		record := []string{
			line.Reference, line.Value, line.Package,
			line.IPN, line.Distributor, line.DPN,
			line.Manufacturer, line.MFGPN, line.Source,
			line.Reason, strconv.Itoa(line.Score),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func outputBOMJSON(lines []bomLine) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(lines)
}

func outputBOMYAML(lines []bomLine) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(lines)
}
