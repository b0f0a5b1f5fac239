// Package annotate writes matched sourcing data back into the original
// design files.
//
// The writer re-reads each loaded sheet, edits only the targeted property
// values through the round-trip-preserving parser, and replaces files
// atomically: every other byte of the document is reproduced unchanged,
// and a mid-write failure never corrupts the original. Dry-run performs
// the identical planning and diff computation without touching the
// filesystem.
package annotate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"partlinker/internal/design"
	"partlinker/internal/errors"
	"partlinker/internal/logging"
	"partlinker/internal/report"
	"partlinker/internal/sexp"
	"partlinker/internal/types"
)

// Field names one annotatable component property.
type Field string

const (
	FieldIPN          Field = "IPN"
	FieldDistributor  Field = "Distributor"
	FieldDPN          Field = "DPN"
	FieldManufacturer Field = "Manufacturer"
	FieldMFGPN        Field = "MFGPN"
)

// AllFields returns every annotatable field, the default selection.
func AllFields() []Field {
	return []Field{FieldIPN, FieldDistributor, FieldDPN, FieldManufacturer, FieldMFGPN}
}

// ParseFields resolves a field subset from config or flags; empty input
// selects all annotatable fields.
func ParseFields(names []string) ([]Field, error) {
	if len(names) == 0 {
		return AllFields(), nil
	}

	known := make(map[string]Field)
	for _, f := range AllFields() {
		known[strings.ToLower(string(f))] = f
	}

	var fields []Field
	for _, name := range names {
		f, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.NewAnnotateError("unknown_field",
				fmt.Sprintf("unknown annotation field %q", name), nil)
		}
		fields = append(fields, f)
	}

	return fields, nil
}

// fieldValue extracts the field's value from the winning inventory item.
func fieldValue(item *types.InventoryItem, field Field) string {
	switch field {
	case FieldIPN:
		return item.IPN
	case FieldDistributor:
		return item.Distributor
	case FieldDPN:
		return item.DPN
	case FieldManufacturer:
		return item.Manufacturer
	case FieldMFGPN:
		return item.MFGPN
	default:
		return ""
	}
}

// Edit is one field-level before/after change on one component.
type Edit struct {
	File      string
	Reference string
	UUID      string
	Field     Field
	Before    string
	After     string
}

// Diff is the planned outcome of a back-annotation run. Dry-run and real
// runs share the identical Diff; only Apply touches the filesystem.
type Diff struct {
	// Edits lists every planned field change, no-ops omitted
	Edits []Edit
	// Warnings records skipped components (missing, unknown, or
	// ambiguous UUIDs)
	Warnings []report.Warning
	// InventoryOnly lists winning IPNs no component could receive; it
	// feeds report.MismatchReport.InventoryOnly
	InventoryOnly []string

	files []plannedFile
}

// Empty reports whether the plan changes nothing.
func (d *Diff) Empty() bool {
	return len(d.Edits) == 0
}

// Files returns the paths the plan would rewrite.
func (d *Diff) Files() []string {
	paths := make([]string, 0, len(d.files))
	for _, f := range d.files {
		paths = append(paths, f.path)
	}

	return paths
}

// plannedFile holds the fully serialized replacement for one sheet file.
type plannedFile struct {
	path string
	data []byte
	mode fs.FileMode
}

// Writer plans and applies back-annotation.
type Writer struct {
	logger logging.Logger
}

// NewWriter creates a back-annotation writer.
func NewWriter(logger logging.Logger) *Writer {
	return &Writer{logger: logger.WithComponent("annotate")}
}

// Plan computes the field-level diff for every matched component. It
// re-reads the design files rather than mutating the loaded model; the
// returned Diff carries the serialized replacements for Apply.
func (w *Writer) Plan(ctx context.Context, d *design.Design, results []types.MatchResult, fields []Field) (*Diff, error) {
	if len(fields) == 0 {
		fields = AllFields()
	}

	byUUID := make(map[string]types.MatchResult)
	for _, r := range results {
		if r.Matched() && r.UUID != "" {
			byUUID[r.UUID] = r
		}
	}

	diff := &Diff{}

	type parsedSheet struct {
		path string
		doc  *sexp.Document
		mode fs.FileMode
	}

	var sheets []parsedSheet
	uuidCount := make(map[string]int)
	for _, sheet := range d.Sheets {
		info, err := os.Stat(sheet.File)
		if err != nil {
			return nil, errors.NewIOError("read_failed", "cannot stat design file", err)
		}
		data, err := os.ReadFile(sheet.File)
		if err != nil {
			return nil, errors.NewIOError("read_failed", "cannot read design file", err)
		}
		doc, err := sexp.Parse(data)
		if err != nil {
			return nil, err
		}

		sheets = append(sheets, parsedSheet{path: sheet.File, doc: doc, mode: info.Mode()})
		for _, symbol := range doc.Root().Lists("symbol") {
			if uuid := symbol.List("uuid").StringAt(1); uuid != "" {
				uuidCount[uuid]++
			}
		}
	}

	applied := make(map[string]bool, len(byUUID))
	for _, sheet := range sheets {
		touched := false
		for _, symbol := range sheet.doc.Root().Lists("symbol") {
			uuid := symbol.List("uuid").StringAt(1)
			result, ok := byUUID[uuid]
			if !ok {
				continue
			}
			if uuidCount[uuid] > 1 {
				if !applied[uuid] {
					applied[uuid] = true
					diff.Warnings = append(diff.Warnings, report.Warning{
						Code:      "ambiguous_uuid",
						Message:   fmt.Sprintf("UUID %s matches %d components, skipped", uuid, uuidCount[uuid]),
						File:      sheet.path,
						Reference: result.Reference,
					})
					diff.InventoryOnly = append(diff.InventoryOnly, result.Winner.IPN)
					w.logger.Warn(ctx, nil, "ambiguous component UUID", "uuid", uuid)
				}
				continue
			}
			applied[uuid] = true

			if w.planSymbol(diff, sheet.path, symbol, result, fields) {
				touched = true
			}
		}

		if touched {
			diff.files = append(diff.files, plannedFile{
				path: sheet.path,
				data: sheet.doc.Bytes(),
				mode: sheet.mode,
			})
		}
	}

	// Results whose UUID is absent or never resolved are mismatches:
	// inventory data with no component to receive it. Reported in input
	// order, never applied.
	for _, result := range results {
		if !result.Matched() {
			continue
		}
		if result.UUID == "" {
			diff.Warnings = append(diff.Warnings, report.Warning{
				Code:      "missing_uuid",
				Message:   fmt.Sprintf("component %s has no UUID, cannot receive %s", result.Reference, result.Winner.IPN),
				Reference: result.Reference,
			})
			diff.InventoryOnly = append(diff.InventoryOnly, result.Winner.IPN)
			w.logger.Warn(ctx, nil, "component has no UUID",
				"reference", result.Reference, "ipn", result.Winner.IPN)
			continue
		}
		if applied[result.UUID] {
			continue
		}
		applied[result.UUID] = true
		diff.Warnings = append(diff.Warnings, report.Warning{
			Code:      "invalid_uuid",
			Message:   fmt.Sprintf("no component with UUID %s for %s", result.UUID, result.Winner.IPN),
			Reference: result.Reference,
		})
		diff.InventoryOnly = append(diff.InventoryOnly, result.Winner.IPN)
		w.logger.Warn(ctx, nil, "match result has no component",
			"uuid", result.UUID, "ipn", result.Winner.IPN)
	}

	w.logger.Info(ctx, "annotation planned",
		"edits", len(diff.Edits), "files", len(diff.files), "warnings", len(diff.Warnings))

	return diff, nil
}

// planSymbol applies the requested fields to one symbol node, recording
// an edit per changed value. Empty inventory fields are not written.
func (w *Writer) planSymbol(diff *Diff, path string, symbol *sexp.Node, result types.MatchResult, fields []Field) bool {
	props := make(map[string]*sexp.Node)
	for _, prop := range symbol.Lists("property") {
		props[prop.StringAt(1)] = prop
	}

	touched := false
	for _, field := range fields {
		after := fieldValue(result.Winner, field)
		if after == "" {
			continue
		}

		before := ""
		if prop, ok := props[string(field)]; ok {
			before = prop.StringAt(2)
		}
		if before == after {
			continue
		}

		if prop, ok := props[string(field)]; ok {
			if atom, ok := prop.Atom(2); ok {
				atom.SetValue(after)
			}
		} else {
			symbol.Append(fmt.Sprintf("\n    (property %s %s)",
				quote(string(field)), quote(after)))
		}

		diff.Edits = append(diff.Edits, Edit{
			File:      path,
			Reference: result.Reference,
			UUID:      result.UUID,
			Field:     field,
			Before:    before,
			After:     after,
		})
		touched = true
	}

	return touched
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// Apply writes every planned file atomically: the replacement is fully
// serialized to a temporary file in the same directory, then renamed over
// the original only on success.
func (w *Writer) Apply(ctx context.Context, diff *Diff) error {
	for _, file := range diff.files {
		if err := writeAtomic(file); err != nil {
			return err
		}
		w.logger.Info(ctx, "design file updated", "file", file.path)
	}

	return nil
}

func writeAtomic(file plannedFile) error {
	dir := filepath.Dir(file.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(file.path)+".tmp*")
	if err != nil {
		return errors.NewAnnotateError("write_failed", "cannot create temporary file", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(file.data); err != nil {
		cleanup()
		return errors.NewAnnotateError("write_failed", "cannot write temporary file", err)
	}
	if err := tmp.Chmod(file.mode); err != nil {
		cleanup()
		return errors.NewAnnotateError("write_failed", "cannot set file mode", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.NewAnnotateError("write_failed", "cannot sync temporary file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewAnnotateError("write_failed", "cannot close temporary file", err)
	}

	if err := os.Rename(tmpPath, file.path); err != nil {
		os.Remove(tmpPath)
		return errors.NewAnnotateError("write_failed", "cannot replace design file", err)
	}

	return nil
}
