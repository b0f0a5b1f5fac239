package design

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"partlinker/internal/errors"
	"partlinker/internal/logging"
	"partlinker/internal/report"
	"partlinker/internal/sexp"
	"partlinker/internal/types"
	"partlinker/internal/values"
)

// Design is the fully loaded hierarchical model of one schematic project.
// It is immutable after construction and safe to share across concurrent
// matcher invocations.
type Design struct {
	// Root is the entry schematic file path
	Root string
	// Sheets is the flat sheet arena; index 0 is the root sheet
	Sheets []types.Sheet
	// Components holds every component across all loaded sheets
	Components []types.Component
}

// Loader parses schematic hierarchies and board files.
type Loader struct {
	logger logging.Logger
}

// NewLoader creates a loader reporting recoverable conditions to logger.
func NewLoader(logger logging.Logger) *Loader {
	return &Loader{logger: logger.WithComponent("design")}
}

// referencePrefixCategories maps designator prefixes to part categories.
// Two-letter prefixes are checked before single letters.
var referencePrefixCategories = map[string]string{
	"FB": "ferrite",
	"SW": "switch",
	"R":  "resistor",
	"C":  "capacitor",
	"L":  "inductor",
	"D":  "diode",
	"Q":  "transistor",
	"U":  "ic",
	"J":  "connector",
	"Y":  "crystal",
	"F":  "fuse",
	"T":  "transformer",
	"K":  "relay",
}

// sheetQueueEntry tracks one pending sheet file during traversal.
type sheetQueueEntry struct {
	file      string
	parent    int
	depth     int
	sheetPath string
}

// LoadSchematic parses root and the transitive closure of its sheet
// references. A missing child sheet is recoverable: it is reported as a
// warning and the remaining sheets still load. The returned warnings also
// carry components whose values failed normalization.
func (l *Loader) LoadSchematic(ctx context.Context, root string) (*Design, *report.Warnings, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, errors.NewIOError("bad_path", "cannot resolve schematic path", err)
	}

	warnings := &report.Warnings{}
	d := &Design{Root: root}

	visited := make(map[string]bool)
	queue := []sheetQueueEntry{{file: absRoot, parent: -1, depth: 0, sheetPath: "/"}}

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		// The visited set keeps the arena acyclic: a sheet file already in
		// the tree is never loaded twice, so self- and mutual references
		// cannot recurse.
		if visited[entry.file] {
			continue
		}
		visited[entry.file] = true

		doc, err := parseFile(entry.file)
		if err != nil {
			if entry.parent < 0 {
				return nil, nil, err
			}
			w := report.Warningf("missing_sheet", entry.file,
				"sub-sheet %q could not be loaded: %v", filepath.Base(entry.file), err)
			warnings.Add(w)
			l.logger.Warn(ctx, err, "skipping unloadable sub-sheet", "file", entry.file)
			continue
		}

		if tag := doc.Root().Tag(); tag != "kicad_sch" {
			err := errors.NewParseError("wrong_format",
				fmt.Sprintf("expected a schematic document, found %q", tag)).
				WithLocation(entry.file, 0)
			if entry.parent < 0 {
				return nil, nil, err
			}
			warnings.Add(report.Warningf("missing_sheet", entry.file,
				"sub-sheet is not a schematic: %v", err))
			continue
		}

		sheetIdx := len(d.Sheets)
		d.Sheets = append(d.Sheets, types.Sheet{
			File:   entry.file,
			Parent: entry.parent,
			Depth:  entry.depth,
		})

		comps, compWarnings := l.extractComponents(doc, entry)
		d.Components = append(d.Components, comps...)
		for _, w := range compWarnings {
			warnings.Add(w)
			l.logger.Warn(ctx, nil, w.Message, "file", w.File, "ref", w.Reference)
		}

		dir := filepath.Dir(entry.file)
		for _, child := range sheetFiles(doc) {
			queue = append(queue, sheetQueueEntry{
				file:      filepath.Join(dir, filepath.FromSlash(child)),
				parent:    sheetIdx,
				depth:     entry.depth + 1,
				sheetPath: path.Join(entry.sheetPath, strings.TrimSuffix(child, schematicExt)),
			})
		}
	}

	l.logger.Info(ctx, "schematic loaded",
		"root", root, "sheets", len(d.Sheets), "components", len(d.Components))

	return d, warnings, nil
}

// parseFile reads and parses one sheet file. The handle is closed before
// the function returns; no handle outlives its parse step.
func parseFile(file string) (*sexp.Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.NewIOError("read_failed", "cannot read design file", err)
	}

	doc, err := sexp.Parse(data)
	if err != nil {
		var pe *errors.PipelineError
		if stderrors.As(err, &pe) {
			pe.FilePath = file
		}

		return nil, err
	}

	return doc, nil
}

// sheetFiles returns the child sheet file names referenced by doc.
func sheetFiles(doc *sexp.Document) []string {
	var files []string
	for _, sheet := range doc.Root().Lists("sheet") {
		for _, prop := range sheet.Lists("property") {
			name := prop.StringAt(1)
			if name == "Sheetfile" || name == "Sheet file" {
				if file := prop.StringAt(2); file != "" {
					files = append(files, file)
				}
			}
		}
	}

	return files
}

// extractComponents reads every symbol instance on one sheet.
func (l *Loader) extractComponents(doc *sexp.Document, entry sheetQueueEntry) ([]types.Component, []report.Warning) {
	var comps []types.Component
	var warnings []report.Warning

	for _, symbol := range doc.Root().Lists("symbol") {
		props := propertyMap(symbol)

		comp := types.Component{
			Reference:  props["Reference"],
			Value:      props["Value"],
			Footprint:  props["Footprint"],
			PartNumber: props["IPN"],
			LibraryID:  symbol.List("lib_id").StringAt(1),
			UUID:       symbol.List("uuid").StringAt(1),
			SheetPath:  entry.sheetPath,
		}

		// Flags are read verbatim from declared nodes, never inferred.
		comp.DNP = flagSet(symbol, "dnp")
		comp.ExcludeFromBOM = flagSet(symbol, "exclude_from_bom") ||
			flagCleared(symbol, "in_bom")

		if override, ok := props["Category"]; ok && override != "" {
			comp.Category = strings.ToLower(override)
		} else {
			comp.Category = categoryFromReference(comp.Reference)
		}

		norm, err := values.Normalize(comp.Value)
		if err != nil {
			warnings = append(warnings, report.Warning{
				Code:      "invalid_value",
				Message:   fmt.Sprintf("component %s: %v", comp.Reference, err),
				File:      entry.file,
				Reference: comp.Reference,
			})
			norm = values.Value{Raw: comp.Value, Canonical: comp.Value}
		}
		comp.Norm = norm

		comps = append(comps, comp)
	}

	return comps, warnings
}

// propertyMap collects the node's (property "Name" "Value" ...) children.
func propertyMap(node *sexp.Node) map[string]string {
	props := make(map[string]string)
	for _, prop := range node.Lists("property") {
		if name := prop.StringAt(1); name != "" {
			props[name] = prop.StringAt(2)
		}
	}

	return props
}

// flagSet reports a declared boolean child like (dnp yes).
func flagSet(node *sexp.Node, tag string) bool {
	flag := node.List(tag)

	return flag != nil && flag.StringAt(1) == "yes"
}

// flagCleared reports a declared boolean child explicitly set to no,
// as in (in_bom no).
func flagCleared(node *sexp.Node, tag string) bool {
	flag := node.List(tag)

	return flag != nil && flag.StringAt(1) == "no"
}

// categoryFromReference derives a part category from the designator's
// letter prefix; two-letter prefixes win over single letters. Unknown
// prefixes become their own lowercase category.
func categoryFromReference(ref string) string {
	i := 0
	for i < len(ref) && (ref[i] < '0' || ref[i] > '9') {
		i++
	}
	prefix := strings.ToUpper(ref[:i])
	if prefix == "" {
		return ""
	}

	if len(prefix) >= 2 {
		if cat, ok := referencePrefixCategories[prefix[:2]]; ok && len(prefix) == 2 {
			return cat
		}
	}
	if cat, ok := referencePrefixCategories[prefix[:1]]; ok {
		return cat
	}

	return strings.ToLower(prefix)
}
