package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"partlinker/internal/config"
	"partlinker/internal/logging"
	"partlinker/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rerun the sourcing pipeline on file changes",
	Long: `Watch the design files and inventory sources and rerun the match
pipeline whenever one of them changes. Results print as a summary line
per run; use 'partlinker bom' for the full bill of materials.

Examples:
  partlinker watch                       # Watch configured design and sources
  partlinker watch --verbose             # Print per-file change events`,
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	addPipelineFlags(watchCmd)
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	fileWatcher, err := watcher.NewFileWatcher(300*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.PipelineFilter)
	fileWatcher.AddFilter(watcher.NoHiddenFilter)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		if watchVerbose {
			fmt.Println("File changes detected:")
			for _, event := range events {
				fmt.Printf("   %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Printf("%d file(s) changed\n", len(events))
		}

		if err := runWatchPass(ctx, cfg, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Pipeline run failed: %v\n", err)
		}

		return nil
	})

	fmt.Println("Setting up file watching...")
	run, err := runPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	summarizeRun(run)

	for _, sheet := range run.Design.Sheets {
		if err := fileWatcher.AddPath(sheet.File); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to watch %s: %v\n", sheet.File, err)
		} else if watchVerbose {
			fmt.Printf("   - Watching: %s\n", sheet.File)
		}
	}
	for _, source := range cfg.Inventory.Sources {
		if err := fileWatcher.AddPath(source); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to watch %s: %v\n", source, err)
		} else if watchVerbose {
			fmt.Printf("   - Watching: %s\n", source)
		}
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Println("Watching for changes... (Press Ctrl+C to stop)")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	fmt.Println("\nStopping file watcher...")
	cancel()

	return nil
}

func runWatchPass(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	run, err := runPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	summarizeRun(run)

	return nil
}

func summarizeRun(run *pipelineRun) {
	matched := 0
	for _, result := range run.Results {
		if result.Matched() {
			matched++
		}
	}

	fmt.Printf("%d components, %d matched, %d unmatched, %d inventory items\n",
		len(run.Results), matched, len(run.Mismatches.Unmatched), run.Inventory.Len())

	if watchVerbose {
		for _, ref := range run.Mismatches.Unmatched {
			fmt.Printf("   unmatched: %s\n", ref)
		}
	}
}
