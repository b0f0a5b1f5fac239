// Package match scores inventory candidates against design components
// and selects the winning item per component.
//
// Matching is a pure function over the immutable design and merged
// inventory: results for different components are independent, carry no
// side effects, and are fully deterministic, including every tie-break.
package match

import (
	"context"
	"sort"
	"strings"

	"partlinker/internal/inventory"
	"partlinker/internal/logging"
	"partlinker/internal/types"
	"partlinker/internal/values"
)

// Cascade scores, strongest rule first.
const (
	scoreIPN       = 100
	scoreExact     = 90
	scoreTolerance = 75
	scoreValue     = 60

	// DefaultThreshold is the minimum score a candidate must clear.
	DefaultThreshold = 50
)

// Matcher evaluates the rule cascade. The zero value matches with no
// tolerance comparator and the default threshold.
type Matcher struct {
	// Tolerance decides near-equivalence of normalized values; nil
	// disables tolerance matching entirely.
	Tolerance values.Comparator
	// Threshold is the minimum qualifying score; zero means default.
	Threshold int
}

// New creates a matcher with the given tolerance comparator.
func New(tolerance values.Comparator) *Matcher {
	return &Matcher{Tolerance: tolerance, Threshold: DefaultThreshold}
}

func (m *Matcher) threshold() int {
	if m.Threshold > 0 {
		return m.Threshold
	}

	return DefaultThreshold
}

// Match evaluates one component against the merged inventory. An
// unmatched component is a normal terminal outcome, not an error.
func (m *Matcher) Match(comp types.Component, inv *inventory.Merged) types.MatchResult {
	result := types.MatchResult{
		Reference: comp.Reference,
		UUID:      comp.UUID,
		Reason:    types.ReasonUnmatched,
	}

	compPkg := values.NormalizePackage(comp.Footprint)
	threshold := m.threshold()

	var candidates []types.Candidate
	for _, item := range inv.Items() {
		score, reason := m.score(comp, compPkg, item)
		if score < threshold {
			continue
		}
		candidates = append(candidates, types.Candidate{Item: item, Score: score, Reason: reason})
	}

	if len(candidates) == 0 {
		return result
	}

	// Selection is fully deterministic: lowest Priority wins, ties break
	// by highest score, then source precedence, then first-encountered
	// order. Items() iterates first-seen order, so a stable sort on the
	// remaining keys preserves the final tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Item.Priority != b.Item.Priority {
			return a.Item.Priority < b.Item.Priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}

		return a.Item.SourceIndex < b.Item.SourceIndex
	})

	result.Winner = candidates[0].Item
	result.Reason = candidates[0].Reason
	result.Score = candidates[0].Score
	result.Alternatives = candidates

	return result
}

// score runs the descending-priority rule cascade for one candidate.
// Category mismatch, or value mismatch with no tolerance equivalence,
// disqualifies the candidate.
func (m *Matcher) score(comp types.Component, compPkg string, item *types.InventoryItem) (int, string) {
	if comp.PartNumber != "" && comp.PartNumber == item.IPN {
		return scoreIPN, types.ReasonIPN
	}

	if !strings.EqualFold(comp.Category, item.Category) {
		return 0, ""
	}

	itemPkg := values.NormalizePackage(item.Package)
	packagesMatch := compPkg != "" && compPkg == itemPkg

	if comp.Norm.Equal(item.Norm) {
		if packagesMatch {
			return scoreExact, types.ReasonExact
		}

		return scoreValue, types.ReasonValue
	}

	if m.Tolerance != nil && packagesMatch && m.Tolerance(comp.Norm, item.Norm) {
		return scoreTolerance, types.ReasonTolerance
	}

	return 0, ""
}

// MatchAll evaluates every component sequentially. Components flagged
// exclude-from-output are skipped with an explicit "excluded" result;
// do-not-populate components still match, with the flag carried on the
// component for downstream writers.
func (m *Matcher) MatchAll(ctx context.Context, comps []types.Component, inv *inventory.Merged, logger logging.Logger) []types.MatchResult {
	logger = logger.WithComponent("match")

	results := make([]types.MatchResult, 0, len(comps))
	matched := 0
	for _, comp := range comps {
		if comp.ExcludeFromBOM {
			results = append(results, types.MatchResult{
				Reference: comp.Reference,
				UUID:      comp.UUID,
				Reason:    types.ReasonExcluded,
			})
			continue
		}

		result := m.Match(comp, inv)
		if result.Matched() {
			matched++
		} else {
			logger.Debug(ctx, "no inventory candidate",
				"ref", comp.Reference, "value", comp.Value, "category", comp.Category)
		}
		results = append(results, result)
	}

	logger.Info(ctx, "matching complete",
		"components", len(comps), "matched", matched)

	return results
}

// Unmatched extracts the references with no winning candidate, excluded
// components aside, for the mismatch report.
func Unmatched(results []types.MatchResult) []string {
	var refs []string
	for _, r := range results {
		if !r.Matched() && r.Reason == types.ReasonUnmatched {
			refs = append(refs, r.Reference)
		}
	}

	return refs
}
