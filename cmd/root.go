// Package cmd provides the command-line interface for partlinker with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --inventory, etc.) - highest priority
//	2. PARTLINKER_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (PARTLINKER_MATCH_THRESHOLD, etc.)
//	4. Configuration files (.partlinker.yml) - lowest priority
//
// Environment Variables:
//
//	PARTLINKER_CONFIG_FILE: Path to custom configuration file
//	PARTLINKER_DESIGN_SCHEMATIC: Override root schematic location
//	PARTLINKER_MATCH_TOLERANCE_PERCENT: Enable the tolerance comparator
//	And more following the PARTLINKER_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "partlinker",
	Short: "Link design components to sourceable inventory parts",
	Long: `Partlinker reads a hierarchical schematic design, merges part catalogs
in precedence order, scores every component against the merged inventory,
and writes the winning sourcing data back into the design files.

Key Features:
  • Hierarchical schematic and board loading
  • Unit-aware component value normalization
  • Precedence-ordered inventory catalog merging
  • Deterministic rule-cascade part matching
  • Round-trip-safe back-annotation of design files

Quick Start:
  partlinker bom                  Generate a sourced bill of materials
  partlinker annotate --dry-run   Preview back-annotation edits
  partlinker inventory            Inspect the merged inventory
  partlinker watch                Rerun the pipeline on file changes`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .partlinker.yml, can also use PARTLINKER_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. PARTLINKER_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .partlinker.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PARTLINKER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".partlinker")
	}

	viper.SetEnvPrefix("PARTLINKER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config files are fine; flags and environment carry the
	// configuration then.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
