package annotate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partlinker/internal/design"
	"partlinker/internal/logging"
	"partlinker/internal/types"
)

func testLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LevelError,
		Format: "text",
		Output: os.Stderr,
	})
}

const annotatedSchematic = `(kicad_sch (version 20230121)
  (unknown_tag (kept verbatim))
  (symbol
    (lib_id "Device:R")
    (uuid "r1-uuid")
    (property "Reference" "R1")
    (property "Value" "10K")
    (property "Distributor" "OldCorp")
  )
  (symbol
    (lib_id "Device:C")
    (uuid "c1-uuid")
    (property "Reference" "C1")
    (property "Value" "100nF")
  )
)
`

func loadTestDesign(t *testing.T) (*design.Design, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.kicad_sch")
	require.NoError(t, os.WriteFile(path, []byte(annotatedSchematic), 0644))

	d, _, err := design.NewLoader(testLogger()).LoadSchematic(context.Background(), path)
	require.NoError(t, err)

	return d, path
}

func resultFor(uuid, ref string, item *types.InventoryItem) types.MatchResult {
	return types.MatchResult{
		Reference: ref,
		UUID:      uuid,
		Winner:    item,
		Reason:    types.ReasonExact,
		Score:     90,
	}
}

var stockItem = &types.InventoryItem{
	IPN:          "R-10K-0603",
	Distributor:  "Mouser",
	DPN:          "71-CRCW0603",
	Manufacturer: "Vishay",
	MFGPN:        "CRCW060310K0",
}

func TestParseFields(t *testing.T) {
	all, err := ParseFields(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	subset, err := ParseFields([]string{"distributor", "DPN"})
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldDistributor, FieldDPN}, subset)

	_, err = ParseFields([]string{"color"})
	assert.Error(t, err)
}

func TestPlan_EditsAndUntouchedBytes(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	results := []types.MatchResult{resultFor("r1-uuid", "R1", stockItem)}
	diff, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)

	// Distributor is updated, the other four fields are inserted.
	assert.Len(t, diff.Edits, 5)
	var distributor Edit
	for _, e := range diff.Edits {
		if e.Field == FieldDistributor {
			distributor = e
		}
	}
	assert.Equal(t, "OldCorp", distributor.Before)
	assert.Equal(t, "Mouser", distributor.After)
	assert.Equal(t, "R1", distributor.Reference)

	require.NoError(t, w.Apply(context.Background(), diff))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `(property "Distributor" "Mouser")`)
	assert.Contains(t, out, `(property "IPN" "R-10K-0603")`)
	assert.Contains(t, out, `(property "MFGPN" "CRCW060310K0")`)
	// Untouched constructs survive byte-for-byte.
	assert.Contains(t, out, "(unknown_tag (kept verbatim))")
	assert.Contains(t, out, `(property "Reference" "C1")`)
	assert.Contains(t, out, `(property "Value" "100nF")`)
	assert.NotContains(t, out, "OldCorp")
}

func TestPlan_FieldSubset(t *testing.T) {
	d, _ := loadTestDesign(t)
	w := NewWriter(testLogger())

	results := []types.MatchResult{resultFor("r1-uuid", "R1", stockItem)}
	diff, err := w.Plan(context.Background(), d, results, []Field{FieldDistributor})
	require.NoError(t, err)

	require.Len(t, diff.Edits, 1)
	assert.Equal(t, FieldDistributor, diff.Edits[0].Field)
}

func TestPlan_SecondRunIsEmpty(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	results := []types.MatchResult{resultFor("r1-uuid", "R1", stockItem)}
	diff, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)
	require.NoError(t, w.Apply(context.Background(), diff))

	// Reload so the model reflects the annotated file.
	d2, _, err := design.NewLoader(testLogger()).LoadSchematic(context.Background(), path)
	require.NoError(t, err)

	again, err := w.Plan(context.Background(), d2, results, nil)
	require.NoError(t, err)
	assert.True(t, again.Empty())
	assert.Empty(t, again.Files())
}

func TestPlan_DryRunMatchesRealRun(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())
	results := []types.MatchResult{resultFor("r1-uuid", "R1", stockItem)}

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	dry, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)

	// Dry-run: no Apply, file untouched.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	real, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)
	require.NoError(t, w.Apply(context.Background(), real))

	// Identical diff content, differing only in filesystem effect.
	assert.Equal(t, dry.Edits, real.Edits)
	assert.Equal(t, dry.Warnings, real.Warnings)
	assert.Equal(t, dry.InventoryOnly, real.InventoryOnly)

	changed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(changed))
}

func TestPlan_UnknownUUIDIsInventoryOnly(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	results := []types.MatchResult{resultFor("ghost-uuid", "R9", stockItem)}
	diff, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	require.Len(t, diff.Warnings, 1)
	assert.Equal(t, "invalid_uuid", diff.Warnings[0].Code)
	assert.Equal(t, []string{"R-10K-0603"}, diff.InventoryOnly)

	require.NoError(t, w.Apply(context.Background(), diff))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, annotatedSchematic, string(data))
}

func TestPlan_MissingUUIDWarnsAndStaysInventoryOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nouuid.kicad_sch")
	src := `(kicad_sch
  (symbol (lib_id "Device:R") (property "Reference" "R1") (property "Value" "10K"))
)`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	d, _, err := design.NewLoader(testLogger()).LoadSchematic(context.Background(), path)
	require.NoError(t, err)

	w := NewWriter(testLogger())
	diff, err := w.Plan(context.Background(), d,
		[]types.MatchResult{resultFor("", "R1", stockItem)}, nil)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	require.Len(t, diff.Warnings, 1)
	assert.Equal(t, "missing_uuid", diff.Warnings[0].Code)
	assert.Equal(t, "R1", diff.Warnings[0].Reference)
	assert.Equal(t, []string{"R-10K-0603"}, diff.InventoryOnly)

	require.NoError(t, w.Apply(context.Background(), diff))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, string(data))
}

func TestPlan_AmbiguousUUIDSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.kicad_sch")
	dup := `(kicad_sch
  (symbol (uuid "same") (property "Reference" "R1") (property "Value" "10K"))
  (symbol (uuid "same") (property "Reference" "R2") (property "Value" "10K"))
)`
	require.NoError(t, os.WriteFile(path, []byte(dup), 0644))

	d, _, err := design.NewLoader(testLogger()).LoadSchematic(context.Background(), path)
	require.NoError(t, err)

	w := NewWriter(testLogger())
	diff, err := w.Plan(context.Background(), d, []types.MatchResult{resultFor("same", "R1", stockItem)}, nil)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	require.Len(t, diff.Warnings, 1)
	assert.Equal(t, "ambiguous_uuid", diff.Warnings[0].Code)
	assert.Equal(t, []string{"R-10K-0603"}, diff.InventoryOnly)
}

func TestPlan_UnmatchedComponentUntouched(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	results := []types.MatchResult{
		{Reference: "C1", UUID: "c1-uuid", Reason: types.ReasonUnmatched},
	}
	diff, err := w.Plan(context.Background(), d, results, nil)
	require.NoError(t, err)
	assert.True(t, diff.Empty())

	require.NoError(t, w.Apply(context.Background(), diff))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, annotatedSchematic, string(data))
}

func TestPlan_ValueWithQuotesEscaped(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	item := &types.InventoryItem{IPN: "X", Manufacturer: `ACME "Deluxe"`}
	diff, err := w.Plan(context.Background(), d,
		[]types.MatchResult{resultFor("c1-uuid", "C1", item)}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Apply(context.Background(), diff))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `\"Deluxe\"`)

	// The annotated file still parses and reads back the decoded value.
	d2, _, err := design.NewLoader(testLogger()).LoadSchematic(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, d2.Components, 2)
}

func TestApply_LeavesNoTempFiles(t *testing.T) {
	d, path := loadTestDesign(t)
	w := NewWriter(testLogger())

	diff, err := w.Plan(context.Background(), d,
		[]types.MatchResult{resultFor("r1-uuid", "R1", stockItem)}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Apply(context.Background(), diff))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp"), e.Name())
	}
}
