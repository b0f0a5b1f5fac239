package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partlinker/internal/config"
	"partlinker/internal/design"
	"partlinker/internal/match"
	"partlinker/internal/types"
)

func TestBuildMatcher(t *testing.T) {
	m := buildMatcher(&config.Config{Match: config.MatchConfig{Threshold: 60}})
	assert.Nil(t, m.Tolerance)
	assert.Equal(t, 60, m.Threshold)

	m = buildMatcher(&config.Config{Match: config.MatchConfig{TolerancePercent: 10, Threshold: match.DefaultThreshold}})
	assert.NotNil(t, m.Tolerance)
}

func TestBOMLines(t *testing.T) {
	run := &pipelineRun{
		Design: &design.Design{
			Components: []types.Component{
				{Reference: "R1", UUID: "u1", Value: "10K", Footprint: "Resistor_SMD:R_0603"},
				{Reference: "C1", UUID: "u2", Value: "100nF", Footprint: "Capacitor_SMD:C_0402"},
			},
		},
		Results: []types.MatchResult{
			{
				Reference: "R1", UUID: "u1", Reason: types.ReasonExact, Score: 90,
				Winner: &types.InventoryItem{
					IPN: "R-10K-0603", Distributor: "Mouser", DPN: "71-X",
					Manufacturer: "Vishay", MFGPN: "CRCW", Source: "lab.csv",
				},
			},
			{Reference: "C1", UUID: "u2", Reason: types.ReasonUnmatched},
		},
	}

	lines := bomLines(run)
	require.Len(t, lines, 2)

	assert.Equal(t, "R1", lines[0].Reference)
	assert.Equal(t, "10K", lines[0].Value)
	assert.Equal(t, "R-10K-0603", lines[0].IPN)
	assert.Equal(t, "Mouser", lines[0].Distributor)
	assert.Equal(t, "lab.csv", lines[0].Source)
	assert.Equal(t, 90, lines[0].Score)

	assert.Equal(t, "C1", lines[1].Reference)
	assert.Empty(t, lines[1].IPN)
	assert.Equal(t, types.ReasonUnmatched, lines[1].Reason)
}

func TestLoadInventoryRequiresSources(t *testing.T) {
	cfg := &config.Config{Log: config.LogConfig{Level: "error", Format: "text"}}
	_, _, err := loadInventory(context.Background(), cfg, newLogger(cfg))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no inventory sources")
}

func TestRunPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	schematic := filepath.Join(dir, "demo.kicad_sch")
	require.NoError(t, os.WriteFile(schematic, []byte(`(kicad_sch (version 20230121)
  (symbol
    (lib_id "Device:R")
    (uuid "u-r1")
    (property "Reference" "R1")
    (property "Value" "10K")
    (property "Footprint" "Resistor_SMD:R_0603")
  )
)`), 0644))

	catalog := filepath.Join(dir, "inventory.csv")
	require.NoError(t, os.WriteFile(catalog, []byte(
		"IPN,Category,Value,Package\nR-10K-0603,Resistor,10K,R_0603\n"), 0644))

	cfg := &config.Config{
		Design:    config.DesignConfig{Schematic: schematic},
		Inventory: config.InventoryConfig{Sources: []string{catalog}},
		Match:     config.MatchConfig{Threshold: match.DefaultThreshold},
		Log:       config.LogConfig{Level: "error", Format: "text"},
	}

	run, err := runPipeline(context.Background(), cfg, newLogger(cfg))
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	require.True(t, run.Results[0].Matched())
	assert.Equal(t, "R-10K-0603", run.Results[0].Winner.IPN)
	assert.Empty(t, run.Mismatches.Unmatched)
	assert.Equal(t, 1, run.Inventory.Len())
}

func TestPipelineFlagBindings(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := rootCmd
	require.NotNil(t, cmd)

	// bom carries the shared pipeline flags.
	bom, _, err := cmd.Find([]string{"bom"})
	require.NoError(t, err)
	for _, name := range []string{"schematic", "board", "inventory", "tolerance", "threshold", "format"} {
		assert.NotNil(t, bom.Flags().Lookup(name), name)
	}

	annotate, _, err := cmd.Find([]string{"annotate"})
	require.NoError(t, err)
	for _, name := range []string{"dry-run", "fields"} {
		assert.NotNil(t, annotate.Flags().Lookup(name), name)
	}
}
