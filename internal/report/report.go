// Package report defines the structured load and mismatch reports that the
// pipeline returns alongside partial results. External BOM and report
// writers consume these types directly; nothing here renders output.
package report

import (
	"fmt"
	"sync"
)

// Warning is one recoverable condition recorded during loading or
// annotation. Warnings are collected, never silently dropped.
type Warning struct {
	// Code classifies the condition (e.g., "missing_sheet", "orphan_placement")
	Code string
	// Message is the human-readable description
	Message string
	// File is the source file involved, when known
	File string
	// Reference is the component or row reference involved, when known
	Reference string
}

// String formats the warning for log output.
func (w Warning) String() string {
	s := w.Code + ": " + w.Message
	if w.File != "" {
		s += " (" + w.File + ")"
	}

	return s
}

// Warningf builds a warning with a formatted message.
func Warningf(code, file, format string, args ...interface{}) Warning {
	return Warning{Code: code, File: file, Message: fmt.Sprintf(format, args...)}
}

// SourceResult describes one attempted inventory source.
type SourceResult struct {
	// Identity names the source (typically its file path)
	Identity string
	// Attempted is true once the loader tried to read the source
	Attempted bool
	// RowsAdded counts rows folded into the merged inventory
	RowsAdded int
	// RowsRejected counts rows dropped for recoverable reasons
	RowsRejected int
	// Err holds the recoverable error that skipped this source, if any
	Err string
}

// Conflict records one IPN collision during the merge fold. The
// first-loaded source's definition was kept.
type Conflict struct {
	// IPN is the colliding internal part number
	IPN string
	// Kept is the identity of the source whose definition won
	Kept string
	// Dropped is the identity of the source whose definition lost
	Dropped string
}

// SourceReport is the structured per-source load report.
type SourceReport struct {
	Sources   []SourceResult
	Conflicts []Conflict
	Warnings  []Warning
}

// RowsAdded sums rows added across all sources.
func (r *SourceReport) RowsAdded() int {
	total := 0
	for _, s := range r.Sources {
		total += s.RowsAdded
	}

	return total
}

// MismatchReport accounts for every entity that did not pair up cleanly.
type MismatchReport struct {
	// Unmatched lists component references with no inventory candidate
	Unmatched []string
	// OrphanPlacements lists placement references with no component
	OrphanPlacements []string
	// OrphanComponents lists component references with no placement
	OrphanComponents []string
	// InventoryOnly lists winning IPNs whose component vanished before
	// annotation could apply them
	InventoryOnly []string
}

// Empty reports whether everything paired up.
func (m *MismatchReport) Empty() bool {
	return len(m.Unmatched) == 0 &&
		len(m.OrphanPlacements) == 0 &&
		len(m.OrphanComponents) == 0 &&
		len(m.InventoryOnly) == 0
}

// Warnings accumulates recoverable conditions across a load. Safe for
// concurrent use, though the reference pipeline runs sequentially.
type Warnings struct {
	mutex sync.Mutex
	list  []Warning
}

// Add appends a warning.
func (w *Warnings) Add(warning Warning) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.list = append(w.list, warning)
}

// All returns a copy of every collected warning.
func (w *Warnings) All() []Warning {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	result := make([]Warning, len(w.list))
	copy(result, w.list)

	return result
}

// Len returns the number of collected warnings.
func (w *Warnings) Len() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return len(w.list)
}
