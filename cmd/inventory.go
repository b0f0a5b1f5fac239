package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"partlinker/internal/config"
	"partlinker/internal/report"
	"partlinker/internal/types"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Inspect the merged inventory",
	Long: `Load and merge the configured inventory sources in precedence order and
print the resulting catalog, including IPN collisions resolved in favor
of earlier sources.

Examples:
  partlinker inventory -i lab.csv -i distributor.yaml
  partlinker inventory --format json
  partlinker inventory --conflicts`,
	RunE: runInventory,
}

var (
	inventoryFormat        string
	inventoryConflictsOnly bool
)

func init() {
	rootCmd.AddCommand(inventoryCmd)

	addPipelineFlags(inventoryCmd)
	inventoryCmd.Flags().StringVarP(&inventoryFormat, "format", "f", "table", "Output format (table, json)")
	inventoryCmd.Flags().BoolVar(&inventoryConflictsOnly, "conflicts", false, "Show only IPN collisions")
}

func runInventory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	merged, sourceReport, err := loadInventory(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	printWarnings(sourceReport.Warnings)

	for _, source := range sourceReport.Sources {
		if source.Err != "" {
			fmt.Fprintf(os.Stderr, "Warning: skipped source %s: %s\n", source.Identity, source.Err)
		}
	}

	if inventoryConflictsOnly {
		return outputConflicts(sourceReport.Conflicts)
	}

	switch strings.ToLower(inventoryFormat) {
	case "table":
		return outputInventoryTable(merged.Items(), sourceReport.Conflicts)
	case "json":
		return outputInventoryJSON(merged.Items())
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", inventoryFormat)
	}
}

func outputConflicts(conflicts []report.Conflict) error {
	if len(conflicts) == 0 {
		fmt.Println("No IPN collisions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "IPN\tKEPT\tDROPPED")
	for _, conflict := range conflicts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", conflict.IPN, conflict.Kept, conflict.Dropped)
	}

	return nil
}

func outputInventoryTable(items []*types.InventoryItem, conflicts []report.Conflict) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "IPN\tCATEGORY\tVALUE\tPACKAGE\tDISTRIBUTOR\tDPN\tPRIORITY\tSOURCE")
	for _, item := range items {
		priority := fmt.Sprintf("%d", item.Priority)
		if item.Priority == types.PriorityUnset {
			priority = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.IPN, item.Category, item.Value, item.Package,
			item.Distributor, item.DPN, priority, item.Source)
	}

	fmt.Fprintf(w, "\nTotal: %d items, %d conflicts\n", len(items), len(conflicts))

	for _, conflict := range conflicts {
		fmt.Fprintf(w, "Conflict: %s kept from %s, dropped from %s\n",
			conflict.IPN, conflict.Kept, conflict.Dropped)
	}

	return nil
}

func outputInventoryJSON(items []*types.InventoryItem) error {
	output := make([]map[string]interface{}, len(items))
	for i, item := range items {
		entry := map[string]interface{}{
			"ipn":      item.IPN,
			"category": item.Category,
			"value":    item.Value,
			"package":  item.Package,
			"source":   item.Source,
		}
		if item.Distributor != "" {
			entry["distributor"] = item.Distributor
		}
		if item.DPN != "" {
			entry["dpn"] = item.DPN
		}
		if item.Manufacturer != "" {
			entry["manufacturer"] = item.Manufacturer
		}
		if item.MFGPN != "" {
			entry["mfgpn"] = item.MFGPN
		}
		if item.Priority != types.PriorityUnset {
			entry["priority"] = item.Priority
		}
		output[i] = entry
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
