// Package types provides common type definitions shared across the
// partlinker pipeline. This package contains the data model exchanged
// between the design loader, inventory merger, matcher, and annotation
// writer to avoid circular dependencies between packages.
package types

import "partlinker/internal/values"

// Component is one physical part instance extracted from a schematic.
type Component struct {
	// Reference is the schematic designator (e.g., "R1", "C12")
	Reference string
	// Value is the raw value text as written in the schematic
	Value string
	// Norm is the canonical form of Value used for matching
	Norm values.Value
	// Footprint is the footprint/package property as declared
	Footprint string
	// LibraryID identifies the symbol library entry (e.g., "Device:R")
	LibraryID string
	// Category is the part category used for match gating (e.g., "resistor")
	Category string
	// PartNumber is a declared internal part number, empty when absent
	PartNumber string
	// UUID uniquely identifies the component within one loaded design
	UUID string
	// DNP marks a do-not-populate component, read verbatim from properties
	DNP bool
	// ExcludeFromBOM marks a component excluded from sourcing output
	ExcludeFromBOM bool
	// SheetPath is the slash-joined sheet file chain from the root sheet
	SheetPath string
}

// Sheet is one loaded schematic file in the hierarchy. Sheets form a tree
// stored as a flat arena with parent indices; the root design file sits at
// index 0 with Parent -1.
type Sheet struct {
	// File is the absolute path of the loaded sheet file
	File string
	// Parent is the arena index of the referencing sheet, -1 for the root
	Parent int
	// Depth is the nesting depth, 0 for the root
	Depth int
}

// Placement is a physical footprint position parsed flat from a board
// file. It links to a Component only by Reference string.
type Placement struct {
	// Reference is the designator linking back to a schematic component
	Reference string
	// X and Y are the board coordinates in board units
	X float64
	Y float64
	// Rotation is the placement angle in degrees
	Rotation float64
	// Side is "top" or "bottom" derived from the board layer
	Side string
	// Package is the footprint name placed on the board
	Package string
}

// InventoryItem is one catalog entry after row normalization.
type InventoryItem struct {
	// IPN is the catalog's internal part number, the merge identity
	IPN string
	// Category gates matching (e.g., "resistor", "capacitor")
	Category string
	// Value is the raw catalog value text
	Value string
	// Norm is the canonical form of Value
	Norm values.Value
	// Package is the catalog package designator (e.g., "0603")
	Package string
	// Distributor and DPN identify the purchasable listing
	Distributor string
	DPN         string
	// Manufacturer and MFGPN identify the manufactured part
	Manufacturer string
	MFGPN        string
	// Description is free-text catalog documentation
	Description string
	// Priority picks among otherwise-equal matches; lower wins. Rows
	// without a priority get PriorityUnset so explicit values always win.
	Priority uint64
	// Source identifies the inventory source this item came from
	Source string
	// SourceIndex is the load-order position of the source, for precedence
	SourceIndex int
	// Extra carries pass-through columns for downstream writers
	Extra map[string]string
}

// PriorityUnset is assigned to rows whose source has no Priority column,
// ranking them behind every explicit priority.
const PriorityUnset uint64 = 4294967295

// Match reason codes, ordered by cascade strength.
const (
	ReasonIPN       = "ipn"
	ReasonExact     = "exact"
	ReasonTolerance = "tolerance"
	ReasonValue     = "value"
	ReasonUnmatched = "unmatched"
	ReasonExcluded  = "excluded"
)

// Candidate is one inventory item that cleared the match threshold.
type Candidate struct {
	// Item is the qualified inventory entry
	Item *InventoryItem
	// Score is the cascade score for this pairing
	Score int
	// Reason is the cascade rule that admitted the candidate
	Reason string
}

// MatchResult is the matching outcome for one component. An unmatched
// component is a normal terminal outcome, not an error.
type MatchResult struct {
	// Reference is the component designator
	Reference string
	// UUID keys the result back to the component for back-annotation
	UUID string
	// Winner is the selected inventory item, nil when unmatched
	Winner *InventoryItem
	// Reason is the winning rule's reason code, or "unmatched"/"excluded"
	Reason string
	// Score is the winner's cascade score, 0 when unmatched
	Score int
	// Alternatives lists every qualified candidate in selection order,
	// winner first, for verbose and alternatives reporting
	Alternatives []Candidate
}

// Matched reports whether the component found a winning inventory item.
func (r MatchResult) Matched() bool {
	return r.Winner != nil
}
