package values

import "math"

// Comparator decides whether two normalized values are practically
// equivalent. Tolerance semantics differ by category, so matching injects
// the comparator instead of hard-coding a percentage. A comparator is only
// consulted for two numeric values; unitless text never tolerance-matches.
type Comparator func(a, b Value) bool

// RelativeTolerance returns a comparator accepting values whose magnitudes
// differ by at most pct percent of the larger magnitude. Units must agree.
func RelativeTolerance(pct float64) Comparator {
	return func(a, b Value) bool {
		if !a.Numeric || !b.Numeric {
			return false
		}
		if a.Unit != b.Unit {
			return false
		}
		if a.Magnitude == b.Magnitude {
			return true
		}

		ref := math.Max(math.Abs(a.Magnitude), math.Abs(b.Magnitude))
		if ref == 0 {
			return false
		}

		return math.Abs(a.Magnitude-b.Magnitude)/ref <= pct/100
	}
}

// Exact is a comparator that accepts only canonical equality. Useful for
// categories where substitution is never acceptable.
func Exact() Comparator {
	return func(a, b Value) bool {
		return a.Numeric && b.Numeric && a.Equal(b)
	}
}
