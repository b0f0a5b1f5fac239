package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func writeSource(t *testing.T, dir, name, content string) Source {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src, err := FileSource(path)
	require.NoError(t, err)

	return src
}

func TestFileSource_UnknownExtension(t *testing.T) {
	_, err := FileSource("stock.xlsx")
	assert.Error(t, err)
}

func TestCSVSource_Rows(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package,Distributor,DPN,Priority,Bin\n"+
			"R001,resistor,10K,0603,Mouser,M-1,1,A3\n"+
			"C001,capacitor,100nF,0603,,,2,B1\n")

	rows, err := src.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "R001", rows[0].IPN)
	assert.Equal(t, "resistor", rows[0].Category)
	assert.Equal(t, "10K", rows[0].Value)
	assert.Equal(t, "0603", rows[0].Package)
	assert.Equal(t, "Mouser", rows[0].Distributor)
	assert.Equal(t, "M-1", rows[0].DPN)
	assert.Equal(t, "1", rows[0].Priority)
	assert.True(t, rows[0].HasPriority)
	assert.Equal(t, "A3", rows[0].Extra["Bin"])
	assert.Equal(t, 2, rows[0].Line)
}

func TestCSVSource_MissingColumnsNamed(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv", "IPN,Value\nR001,10K\n")

	_, err := src.Rows()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
	assert.Contains(t, err.Error(), "package")
	assert.NotContains(t, err.Error(), "value,")
}

func TestYAMLSource_Rows(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.yaml", `
- ipn: R001
  category: resistor
  value: 10K
  package: "0603"
  priority: 1
  bin: A3
- ipn: C001
  category: capacitor
  value: 100nF
  package: "0603"
`)

	rows, err := src.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "R001", rows[0].IPN)
	assert.Equal(t, "1", rows[0].Priority)
	assert.Equal(t, "A3", rows[0].Extra["bin"])
}

func TestYAMLSource_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.yaml", "- ipn: R001\n  value: 10K\n")

	_, err := src.Rows()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
	assert.Contains(t, err.Error(), "package")
}

func load(t *testing.T, sources ...Source) (*Merged, error) {
	t.Helper()
	merged, _, err := Load(context.Background(), sources, testLogger())

	return merged, err
}

func TestLoad_MergePrecedence(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.csv",
		"IPN,Category,Value,Package,Distributor\nX,resistor,10K,0603,FromA\n")
	b := writeSource(t, dir, "b.csv",
		"IPN,Category,Value,Package,Distributor\nX,resistor,22K,0805,FromB\nY,resistor,1K,0402,FromB\n")

	merged, rep, err := Load(context.Background(), []Source{a, b}, testLogger())
	require.NoError(t, err)

	// First-loaded source wins the collision; exactly one conflict.
	item, ok := merged.ByIPN("X")
	require.True(t, ok)
	assert.Equal(t, "FromA", item.Distributor)
	assert.Equal(t, "10K", item.Value)

	require.Len(t, rep.Conflicts, 1)
	assert.Equal(t, "X", rep.Conflicts[0].IPN)
	assert.Contains(t, rep.Conflicts[0].Kept, "a.csv")
	assert.Contains(t, rep.Conflicts[0].Dropped, "b.csv")

	assert.Equal(t, 2, merged.Len())
}

func TestLoad_BadPriorityNamesEveryRow(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package,Priority\n"+
			"R001,resistor,10K,0603,high\n"+
			"R002,resistor,22K,0603,\n"+
			"R003,resistor,47K,0603,#DIV/0!\n")

	_, err := load(t, src)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `"high"`)
	assert.Contains(t, msg, `""`)
	assert.Contains(t, msg, `"#DIV/0!"`)
	assert.Contains(t, msg, "row 2")
	assert.Contains(t, msg, "row 3")
	assert.Contains(t, msg, "row 4")
}

func TestLoad_BadPriorityAcrossSources(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.csv",
		"IPN,Category,Value,Package,Priority\nR001,resistor,10K,0603,first\n")
	b := writeSource(t, dir, "b.csv",
		"IPN,Category,Value,Package,Priority\nC001,capacitor,100nF,0603,second\n")

	_, err := load(t, a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"first"`)
	assert.Contains(t, err.Error(), `"second"`)
}

func TestLoad_PriorityRange(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package,Priority\nR001,resistor,10K,0603,4294967295\n")

	merged, err := load(t, src)
	require.NoError(t, err)

	item, ok := merged.ByIPN("R001")
	require.True(t, ok)
	assert.Equal(t, uint64(4294967295), item.Priority)
}

func TestLoad_NoPriorityColumnIsUnset(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package\nR001,resistor,10K,0603\n")

	merged, err := load(t, src)
	require.NoError(t, err)

	item, _ := merged.ByIPN("R001")
	assert.Equal(t, types.PriorityUnset, item.Priority)
}

func TestLoad_UnreadableSourceIsSkipped(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.csv",
		"IPN,Category,Value,Package\nR001,resistor,10K,0603\n")
	missing := &csvSource{path: filepath.Join(dir, "nope.csv")}

	merged, rep, err := Load(context.Background(), []Source{missing, good}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, merged.Len())
	require.Len(t, rep.Sources, 2)
	assert.NotEmpty(t, rep.Sources[0].Err)
	assert.Equal(t, 1, rep.Sources[1].RowsAdded)
}

func TestLoad_AllSourcesFailDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	a := &csvSource{path: filepath.Join(dir, "a.csv")}
	b := &csvSource{path: filepath.Join(dir, "b.csv")}

	merged, rep, err := Load(context.Background(), []Source{a, b}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Len())
	assert.Len(t, rep.Sources, 2)
}

func TestLoad_InvalidValueRejectsRow(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package\n"+
			"R001,resistor,1.2.3k,0603\n"+
			"R002,resistor,10K,0603\n")

	merged, rep, err := Load(context.Background(), []Source{src}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, merged.Len())
	assert.Equal(t, 1, rep.Sources[0].RowsRejected)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "invalid_value", rep.Warnings[0].Code)
}

func TestLoad_RowWithoutIPNRejected(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package\n,resistor,10K,0603\n")

	merged, rep, err := Load(context.Background(), []Source{src}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Len())
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "missing_ipn", rep.Warnings[0].Code)
}

func TestLoad_ItemNormalization(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package\nR001,resistor,1k1,0603\n")

	merged, err := load(t, src)
	require.NoError(t, err)

	item, _ := merged.ByIPN("R001")
	assert.True(t, item.Norm.Numeric)
	assert.Equal(t, 1100.0, item.Norm.Magnitude)
}

func TestLoad_FirstSeenOrderPreserved(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "stock.csv",
		"IPN,Category,Value,Package\n"+
			"B,resistor,1K,0603\n"+
			"A,resistor,2K,0603\n"+
			"C,resistor,3K,0603\n")

	merged, err := load(t, src)
	require.NoError(t, err)

	var order []string
	for _, item := range merged.Items() {
		order = append(order, item.IPN)
	}
	assert.Equal(t, []string{"B", "A", "C"}, order)
}
