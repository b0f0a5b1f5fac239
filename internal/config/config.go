// Package config provides configuration management for partlinker using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with PARTLINKER_ prefix, and validation. It manages design
// file locations, inventory source lists, match tuning, and back-annotation
// field selection.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Design    DesignConfig    `yaml:"design"`
	Inventory InventoryConfig `yaml:"inventory"`
	Match     MatchConfig     `yaml:"match"`
	Annotate  AnnotateConfig  `yaml:"annotate"`
	Log       LogConfig       `yaml:"log"`
}

type DesignConfig struct {
	// Schematic is a root schematic path, a bare project name, or a
	// directory holding exactly one project.
	Schematic string `yaml:"schematic"`
	Board     string `yaml:"board"`
}

type InventoryConfig struct {
	// Sources lists catalog files in precedence order; the first
	// loaded source wins IPN collisions.
	Sources []string `yaml:"sources"`
}

type MatchConfig struct {
	// TolerancePercent enables the tolerance comparator when > 0.
	TolerancePercent float64 `yaml:"tolerance_percent"`
	Threshold        int     `yaml:"threshold"`
}

type AnnotateConfig struct {
	// Fields selects which sourcing fields to write back; empty
	// selects all of them.
	Fields []string `yaml:"fields"`
	DryRun bool     `yaml:"dry_run"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle sources set via viper (workaround for viper slice handling)
	if viper.IsSet("inventory.sources") && len(config.Inventory.Sources) == 0 {
		sources := viper.GetStringSlice("inventory.sources")
		if len(sources) > 0 {
			config.Inventory.Sources = sources
		}
	}
	if viper.IsSet("annotate.fields") && len(config.Annotate.Fields) == 0 {
		fields := viper.GetStringSlice("annotate.fields")
		if len(fields) > 0 {
			config.Annotate.Fields = fields
		}
	}

	// Handle flag-bound settings set via viper (workaround for viper
	// bool/number handling)
	if viper.IsSet("annotate.dry_run") {
		config.Annotate.DryRun = viper.GetBool("annotate.dry_run")
	}
	if viper.IsSet("match.tolerance_percent") {
		config.Match.TolerancePercent = viper.GetFloat64("match.tolerance_percent")
	}
	if viper.IsSet("match.threshold") {
		config.Match.Threshold = viper.GetInt("match.threshold")
	}

	// Apply default values for MatchConfig if not set
	if !viper.IsSet("match.threshold") && config.Match.Threshold == 0 {
		config.Match.Threshold = 50
	}

	// Apply default values for LogConfig if not set
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for correctness.
func validateConfig(config *Config) error {
	if err := validateMatchConfig(&config.Match); err != nil {
		return fmt.Errorf("match config: %w", err)
	}
	if err := validateAnnotateConfig(&config.Annotate); err != nil {
		return fmt.Errorf("annotate config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateMatchConfig(config *MatchConfig) error {
	if config.TolerancePercent < 0 {
		return fmt.Errorf("tolerance_percent %v must not be negative", config.TolerancePercent)
	}
	if config.TolerancePercent >= 100 {
		return fmt.Errorf("tolerance_percent %v must be below 100", config.TolerancePercent)
	}
	if config.Threshold < 0 || config.Threshold > 100 {
		return fmt.Errorf("threshold %d is not in valid range 0-100", config.Threshold)
	}
	return nil
}

var knownAnnotateFields = []string{"ipn", "distributor", "dpn", "manufacturer", "mfgpn"}

func validateAnnotateConfig(config *AnnotateConfig) error {
	for _, field := range config.Fields {
		if !contains(knownAnnotateFields, strings.ToLower(field)) {
			return fmt.Errorf("unknown annotate field %q (available: %s)",
				field, strings.Join(knownAnnotateFields, ", "))
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("unknown log level %q (available: %s)",
			config.Level, strings.Join(validLevels, ", "))
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("unknown log format %q (available: text, json)", config.Format)
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
