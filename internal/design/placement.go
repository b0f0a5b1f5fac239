package design

import (
	"context"
	"fmt"
	"strconv"

	"partlinker/internal/errors"
	"partlinker/internal/report"
	"partlinker/internal/sexp"
	"partlinker/internal/types"
)

// LoadPlacements parses a board file into a flat placement list. Board
// parsing has no hierarchy; placements link to components only by
// reference string, and unlinked entries on either side are a report
// concern, not a load failure.
func (l *Loader) LoadPlacements(ctx context.Context, path string) ([]types.Placement, error) {
	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	if tag := doc.Root().Tag(); tag != "kicad_pcb" {
		return nil, errors.NewParseError("wrong_format",
			fmt.Sprintf("expected a board document, found %q", tag)).
			WithLocation(path, 0)
	}

	var placements []types.Placement
	for _, fp := range doc.Root().Lists("footprint") {
		placements = append(placements, parseFootprint(fp))
	}

	l.logger.Info(ctx, "board loaded", "file", path, "placements", len(placements))

	return placements, nil
}

// parseFootprint reads one (footprint ...) instance.
func parseFootprint(fp *sexp.Node) types.Placement {
	p := types.Placement{
		Package:   fp.StringAt(1),
		Reference: footprintReference(fp),
	}

	if at := fp.List("at"); at != nil {
		p.X = parseFloat(at.StringAt(1))
		p.Y = parseFloat(at.StringAt(2))
		p.Rotation = parseFloat(at.StringAt(3))
	}

	layer := fp.List("layer").StringAt(1)
	if len(layer) > 0 && layer[0] == 'B' {
		p.Side = "bottom"
	} else {
		p.Side = "top"
	}

	return p
}

// footprintReference finds the designator, accepting both the property
// form and the legacy fp_text form.
func footprintReference(fp *sexp.Node) string {
	for _, prop := range fp.Lists("property") {
		if prop.StringAt(1) == "Reference" {
			return prop.StringAt(2)
		}
	}
	for _, text := range fp.Lists("fp_text") {
		if text.StringAt(1) == "reference" {
			return text.StringAt(2)
		}
	}

	return ""
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return f
}

// Reconcile cross-links components and placements by reference and
// reports the entries with no counterpart on the other side. Duplicate
// sheet-qualified components sharing a bare reference make that
// reference ambiguous for linking and are reported as orphans on the
// placement side only once.
func Reconcile(components []types.Component, placements []types.Placement, mismatches *report.MismatchReport) {
	haveComponent := make(map[string]bool, len(components))
	for _, c := range components {
		if c.Reference != "" {
			haveComponent[c.Reference] = true
		}
	}

	havePlacement := make(map[string]bool, len(placements))
	seenOrphan := make(map[string]bool)
	for _, p := range placements {
		havePlacement[p.Reference] = true
		if !haveComponent[p.Reference] && !seenOrphan[p.Reference] {
			seenOrphan[p.Reference] = true
			mismatches.OrphanPlacements = append(mismatches.OrphanPlacements, p.Reference)
		}
	}

	for _, c := range components {
		if c.Reference != "" && !havePlacement[c.Reference] {
			mismatches.OrphanComponents = append(mismatches.OrphanComponents, c.Reference)
		}
	}
}
