package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"partlinker/internal/config"
	"partlinker/internal/design"
	"partlinker/internal/inventory"
	"partlinker/internal/logging"
	"partlinker/internal/match"
	"partlinker/internal/report"
	"partlinker/internal/types"
	"partlinker/internal/values"
)

// addPipelineFlags registers the flags shared by every command that runs
// the sourcing pipeline, bound to their configuration keys.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("schematic", "s", "", "Root schematic file, project name, or project directory")
	cmd.Flags().StringP("board", "b", "", "Board file (defaults to the schematic's sibling)")
	cmd.Flags().StringSliceP("inventory", "i", nil, "Inventory source files in precedence order")
	cmd.Flags().Float64("tolerance", 0, "Relative value tolerance in percent (0 disables)")
	cmd.Flags().Int("threshold", match.DefaultThreshold, "Minimum qualifying match score")

	viper.BindPFlag("design.schematic", cmd.Flags().Lookup("schematic"))
	viper.BindPFlag("design.board", cmd.Flags().Lookup("board"))
	viper.BindPFlag("inventory.sources", cmd.Flags().Lookup("inventory"))
	viper.BindPFlag("match.tolerance_percent", cmd.Flags().Lookup("tolerance"))
	viper.BindPFlag("match.threshold", cmd.Flags().Lookup("threshold"))
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

func loadDesign(ctx context.Context, cfg *config.Config, logger logging.Logger) (*design.Design, *report.Warnings, error) {
	input := cfg.Design.Schematic
	if input == "" {
		input = "."
	}

	root, err := design.Resolve(input, design.KindSchematic)
	if err != nil {
		return nil, nil, err
	}

	return design.NewLoader(logger).LoadSchematic(ctx, root)
}

func loadInventory(ctx context.Context, cfg *config.Config, logger logging.Logger) (*inventory.Merged, *report.SourceReport, error) {
	if len(cfg.Inventory.Sources) == 0 {
		return nil, nil, fmt.Errorf("no inventory sources configured (use --inventory or inventory.sources)")
	}

	sources := make([]inventory.Source, 0, len(cfg.Inventory.Sources))
	for _, path := range cfg.Inventory.Sources {
		source, err := inventory.FileSource(path)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, source)
	}

	return inventory.Load(ctx, sources, logger)
}

func buildMatcher(cfg *config.Config) *match.Matcher {
	var tolerance values.Comparator
	if cfg.Match.TolerancePercent > 0 {
		tolerance = values.RelativeTolerance(cfg.Match.TolerancePercent)
	}

	return &match.Matcher{Tolerance: tolerance, Threshold: cfg.Match.Threshold}
}

// pipelineRun holds everything one pipeline pass produced.
type pipelineRun struct {
	Design     *design.Design
	Inventory  *inventory.Merged
	Sources    *report.SourceReport
	Results    []types.MatchResult
	Mismatches report.MismatchReport
	Warnings   []report.Warning
}

// runPipeline executes load, merge, and match; annotation stays with the
// commands that want it.
func runPipeline(ctx context.Context, cfg *config.Config, logger logging.Logger) (*pipelineRun, error) {
	d, designWarnings, err := loadDesign(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	merged, sourceReport, err := loadInventory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	results := buildMatcher(cfg).MatchAll(ctx, d.Components, merged, logger)

	run := &pipelineRun{
		Design:    d,
		Inventory: merged,
		Sources:   sourceReport,
		Results:   results,
	}
	run.Mismatches.Unmatched = match.Unmatched(results)
	run.Warnings = append(run.Warnings, designWarnings.All()...)
	run.Warnings = append(run.Warnings, sourceReport.Warnings...)

	if board := cfg.Design.Board; board != "" {
		boardPath, err := design.Resolve(board, design.KindBoard)
		if err != nil {
			return nil, err
		}
		placements, err := design.NewLoader(logger).LoadPlacements(ctx, boardPath)
		if err != nil {
			return nil, err
		}
		design.Reconcile(d.Components, placements, &run.Mismatches)
	}

	return run, nil
}

func printWarnings(warnings []report.Warning) {
	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning.String())
	}
}
