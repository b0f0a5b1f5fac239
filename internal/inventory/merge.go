package inventory

import (
	"context"
	"fmt"
	"strconv"

	"partlinker/internal/errors"
	"partlinker/internal/logging"
	"partlinker/internal/report"
	"partlinker/internal/types"
	"partlinker/internal/values"
)

// Merged is the ordered fold of every loaded inventory source. It is
// immutable after Load and safe to share across concurrent matchers.
type Merged struct {
	items []*types.InventoryItem
	byIPN map[string]*types.InventoryItem
}

// Items returns every merged item in first-seen order. Callers must not
// mutate the returned slice or the items.
func (m *Merged) Items() []*types.InventoryItem {
	return m.items
}

// ByIPN looks up an item by internal part number.
func (m *Merged) ByIPN(ipn string) (*types.InventoryItem, bool) {
	item, ok := m.byIPN[ipn]

	return item, ok
}

// Len returns the number of merged items.
func (m *Merged) Len() int {
	return len(m.items)
}

// Load reads sources in order and folds them into one merged inventory.
//
// An unreadable or malformed source is recoverable: it is recorded in the
// report and skipped; when every source fails the result degrades to an
// empty inventory. Structural problems are fatal and aggregated so the
// returned error names every offender: required columns absent from a
// source, and any Priority cell anywhere that does not parse as a
// non-negative integer.
func Load(ctx context.Context, sources []Source, logger logging.Logger) (*Merged, *report.SourceReport, error) {
	logger = logger.WithComponent("inventory")

	merged := &Merged{byIPN: make(map[string]*types.InventoryItem)}
	rep := &report.SourceReport{}

	fatals := errors.NewCollector()

	for srcIdx, src := range sources {
		result := report.SourceResult{Identity: src.Identity(), Attempted: true}

		rows, err := src.Rows()
		if err != nil {
			if errors.IsRecoverable(err) {
				result.Err = err.Error()
				rep.Sources = append(rep.Sources, result)
				logger.Warn(ctx, err, "skipping inventory source", "source", src.Identity())
				continue
			}
			// Structural failure: keep scanning the remaining sources so
			// the aggregate names every offender, not just the first.
			fatals.Add(err)
			result.Err = err.Error()
			rep.Sources = append(rep.Sources, result)
			continue
		}

		for _, row := range rows {
			priority, err := rowPriority(src.Identity(), row)
			if err != nil {
				fatals.Add(err)
				result.RowsRejected++
				continue
			}
			if fatals.HasErrors() {
				// The load is already doomed; keep validating priorities
				// but stop folding.
				continue
			}

			item, warning := buildItem(src.Identity(), srcIdx, row, priority)
			if item == nil {
				result.RowsRejected++
				rep.Warnings = append(rep.Warnings, warning)
				continue
			}

			if kept, exists := merged.byIPN[item.IPN]; exists {
				rep.Conflicts = append(rep.Conflicts, report.Conflict{
					IPN:     item.IPN,
					Kept:    kept.Source,
					Dropped: item.Source,
				})
				result.RowsRejected++
				continue
			}

			merged.byIPN[item.IPN] = item
			merged.items = append(merged.items, item)
			result.RowsAdded++
		}

		rep.Sources = append(rep.Sources, result)
	}

	if err := errors.Aggregate("inventory load failed", fatals.Errors()); err != nil {
		return nil, rep, err
	}

	logger.Info(ctx, "inventory merged",
		"sources", len(sources), "items", merged.Len(), "conflicts", len(rep.Conflicts))

	return merged, rep, nil
}

// rowPriority validates one Priority cell. A source without the column is
// fine; a declared cell must parse as a non-negative integer supporting
// the full 32-bit unsigned range.
func rowPriority(identity string, row Row) (uint64, error) {
	if !row.HasPriority {
		return types.PriorityUnset, nil
	}

	p, err := strconv.ParseUint(row.Priority, 10, 64)
	if err != nil {
		return 0, errors.NewInventoryError("bad_priority",
			fmt.Sprintf("source %s row %d: priority %q is not a non-negative integer",
				identity, row.Line, row.Priority), false)
	}

	return p, nil
}

// buildItem converts a validated row into an inventory item, or returns a
// warning for rows rejected on recoverable grounds.
func buildItem(identity string, srcIdx int, row Row, priority uint64) (*types.InventoryItem, report.Warning) {
	if row.IPN == "" {
		return nil, report.Warningf("missing_ipn", identity,
			"row %d has no IPN and was skipped", row.Line)
	}

	norm, err := values.Normalize(row.Value)
	if err != nil {
		return nil, report.Warning{
			Code:      "invalid_value",
			Message:   fmt.Sprintf("row %d (%s): %v", row.Line, row.IPN, err),
			File:      identity,
			Reference: row.IPN,
		}
	}

	return &types.InventoryItem{
		IPN:          row.IPN,
		Category:     row.Category,
		Value:        row.Value,
		Norm:         norm,
		Package:      row.Package,
		Distributor:  row.Distributor,
		DPN:          row.DPN,
		Manufacturer: row.Manufacturer,
		MFGPN:        row.MFGPN,
		Description:  row.Description,
		Priority:     priority,
		Source:       identity,
		SourceIndex:  srcIdx,
		Extra:        row.Extra,
	}, report.Warning{}
}
