// Package values parses free-text component values into a canonical form
// that can be compared across schematics and inventory catalogs.
//
// The parser understands SI-prefixed magnitudes ("10K", "100nF"), unicode
// unit symbols ("1µF", "4.7kΩ"), and decimal-in-unit shorthand ("4k7",
// "3V3"). Values with no recognizable numeric form are kept verbatim and
// compared only by exact string equality.
package values

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"partlinker/internal/errors"
)

// Value is the canonical form of a component or inventory value.
type Value struct {
	// Magnitude is the scaled numeric value; meaningful only when Numeric.
	Magnitude float64
	// Unit is the canonical unit ("ohm", "F", "H", "V", "A", "Hz", "%"),
	// empty for plain numbers and non-numeric values.
	Unit string
	// Raw is the original text as it appeared in the source.
	Raw string
	// Canonical is the comparison key: formatted magnitude plus unit for
	// numeric values, the folded raw text otherwise.
	Canonical string
	// Numeric reports whether the value parsed to a magnitude. Non-numeric
	// values compare by exact Canonical equality only.
	Numeric bool
}

// Equal reports whether two values are identical in canonical form.
func (v Value) Equal(other Value) bool {
	if v.Numeric != other.Numeric {
		return false
	}

	return v.Canonical == other.Canonical
}

// prefixScale maps an SI prefix rune to its multiplier. Lowercase m is
// milli and uppercase M is mega; k and K are both kilo per schematic
// convention.
var prefixScale = map[rune]float64{
	'p': 1e-12,
	'P': 1e-12,
	'n': 1e-9,
	'N': 1e-9,
	'u': 1e-6,
	'U': 1e-6,
	'm': 1e-3,
	'k': 1e3,
	'K': 1e3,
	'M': 1e6,
	'g': 1e9,
	'G': 1e9,
	// R marks the decimal point in resistor shorthand ("4R7") and doubles
	// as the bare ohm marker ("10R").
	'r': 1,
	'R': 1,
}

// unitWords maps recognized unit suffixes (lowercase) to their canonical
// unit. Checked longest-first so "ohm" wins over "h" and "hz" over nothing.
var unitWords = []struct {
	word string
	unit string
}{
	{"ohms", "ohm"},
	{"ohm", "ohm"},
	{"hz", "Hz"},
	{"f", "F"},
	{"h", "H"},
	{"v", "V"},
	{"a", "A"},
}

// singleLetterUnits can act as the decimal marker in shorthand like "3V3".
var singleLetterUnits = map[rune]string{
	'f': "F",
	'F': "F",
	'h': "H",
	'H': "H",
	'v': "V",
	'V': "V",
	'a': "A",
	'A': "A",
}

var symbolReplacer = strings.NewReplacer(
	"µ", "u", // micro sign
	"μ", "u", // greek mu
	"Ω", "ohm", // greek omega
	"Ω", "ohm", // ohm sign
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold strips whitespace and maps unicode unit symbols to their ASCII
// equivalents so "4.7 kΩ" and "4.7kohm" parse identically.
func fold(raw string) string {
	folded, _, err := transform.String(foldTransformer, raw)
	if err != nil {
		folded = raw
	}
	folded = symbolReplacer.Replace(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Normalize parses raw into canonical form. A numeric segment carrying a
// recognized unit suffix that does not parse returns an invalid-value
// error naming the offending text; callers must propagate it, not drop it.
func Normalize(raw string) (Value, error) {
	folded := fold(raw)
	if folded == "" {
		return Value{Raw: raw, Canonical: "", Numeric: false}, nil
	}

	v, ok, err := parseNumeric(folded)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{Raw: raw, Canonical: folded, Numeric: false}, nil
	}

	v.Raw = raw
	v.Canonical = strconv.FormatFloat(v.Magnitude, 'g', -1, 64) + v.Unit

	return v, nil
}

// invalidValue builds the InvalidValue condition for a string that looks
// numeric with a recognized unit but cannot be parsed.
func invalidValue(folded string) error {
	return errors.NewValueError("invalid_value",
		"cannot parse numeric value "+strconv.Quote(folded))
}

// parseNumeric attempts to read folded as <number>[prefix][digits][unit].
// It returns ok=false when there is no numeric form at all, and an error
// when a numeric form with a recognized unit is malformed.
func parseNumeric(folded string) (Value, bool, error) {
	// Trailing percent is its own unit.
	unit := ""
	body := folded
	if strings.HasSuffix(body, "%") {
		unit = "%"
		body = strings.TrimSuffix(body, "%")
	}

	i := 0
	for i < len(body) && (body[i] >= '0' && body[i] <= '9' || body[i] == '.') {
		i++
	}
	numStr := body[:i]
	rest := body[i:]

	if numStr == "" {
		return Value{}, false, nil
	}

	if rest == "" && unit == "" {
		mag, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			// Digits with no recognized unit fall back to string identity.
			return Value{}, false, nil
		}

		return Value{Magnitude: mag, Unit: "", Numeric: true}, true, nil
	}

	letters, fracDigits, trailing := splitSuffix(rest)
	if trailing != "" {
		// More structure than <letters><digits><letters> supports.
		return Value{}, false, nil
	}

	scale := 1.0
	suffixUnit := unit

	switch {
	case letters == "" && fracDigits == "":
		// Bare "%" suffix, nothing more to resolve.
	case letters != "":
		s, u, ok := resolveSuffix(letters, fracDigits != "")
		if !ok {
			return Value{}, false, nil
		}
		if u != "" && suffixUnit != "" {
			return Value{}, false, nil
		}
		scale = s
		if u != "" {
			suffixUnit = u
		}
	default:
		// Digits with no letters between number and fraction.
		return Value{}, false, nil
	}

	if strings.Contains(numStr, ".") && fracDigits != "" {
		return Value{}, false, invalidValue(folded)
	}

	mag, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return Value{}, false, invalidValue(folded)
	}

	if fracDigits != "" {
		frac, err := strconv.ParseFloat("0."+fracDigits, 64)
		if err != nil {
			return Value{}, false, invalidValue(folded)
		}
		mag += frac
	}

	return Value{Magnitude: mag * scale, Unit: suffixUnit, Numeric: true}, true, nil
}

// splitSuffix breaks the text after the leading number into a letter run,
// an optional digit run, and an optional second letter run ("k1ohm" into
// "k", "1", "ohm"). Anything beyond that shape lands in trailing.
func splitSuffix(rest string) (letters, digits, trailing string) {
	i := 0
	for i < len(rest) && isLetter(rest[i]) {
		i++
	}
	letters = rest[:i]

	j := i
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	digits = rest[i:j]

	k := j
	for k < len(rest) && isLetter(rest[k]) {
		k++
	}
	// A second letter run is the unit word after a decimal marker, as in
	// "k1ohm"; join it to the marker with a separator for resolveSuffix.
	if k > j {
		if digits == "" || letters == "" {
			return letters, digits, rest[j:]
		}

		return letters + "\x00" + rest[j:k], digits, rest[k:]
	}

	return letters, digits, rest[k:]
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// resolveSuffix interprets the letter portion of a value suffix as
// [prefix][unit word]. hasFrac marks decimal-in-unit shorthand, where a
// lone unit letter ("3V3") or prefix ("1k1") is the decimal marker.
func resolveSuffix(letters string, hasFrac bool) (scale float64, unit string, ok bool) {
	marker, unitPart, split := strings.Cut(letters, "\x00")
	if split {
		// "<marker>digits<unit>": marker must be a single prefix rune.
		runes := []rune(marker)
		if len(runes) != 1 {
			return 0, "", false
		}
		s, isPrefix := prefixScale[runes[0]]
		if !isPrefix {
			return 0, "", false
		}
		u, isUnit := matchUnitWord(unitPart)
		if !isUnit {
			return 0, "", false
		}

		return s, u, true
	}

	lower := strings.ToLower(letters)
	for _, uw := range unitWords {
		if !strings.HasSuffix(lower, uw.word) {
			continue
		}
		head := letters[:len(letters)-len(uw.word)]
		if head == "" {
			return 1, uw.unit, true
		}
		runes := []rune(head)
		if len(runes) == 1 {
			if s, isPrefix := prefixScale[runes[0]]; isPrefix {
				u := uw.unit
				if runes[0] == 'r' || runes[0] == 'R' {
					// R already implies ohm; "Rohm" stays ohm.
					u = "ohm"
				}
				return s, u, true
			}
		}
	}

	runes := []rune(letters)
	if len(runes) == 1 {
		if hasFrac {
			// Single letter before fraction digits: prefix marker ("1k1")
			// or unit marker ("3V3").
			if s, isPrefix := prefixScale[runes[0]]; isPrefix {
				if runes[0] == 'r' || runes[0] == 'R' {
					return s, "ohm", true
				}
				return s, "", true
			}
			if u, isUnit := singleLetterUnits[runes[0]]; isUnit {
				return 1, u, true
			}

			return 0, "", false
		}
		if s, isPrefix := prefixScale[runes[0]]; isPrefix {
			if runes[0] == 'r' || runes[0] == 'R' {
				return s, "ohm", true
			}
			return s, "", true
		}
	}

	return 0, "", false
}

// matchUnitWord resolves a full letter run as a unit word with no prefix.
func matchUnitWord(letters string) (string, bool) {
	lower := strings.ToLower(letters)
	for _, uw := range unitWords {
		if lower == uw.word {
			return uw.unit, true
		}
	}
	if lower == "r" {
		return "ohm", true
	}

	return "", false
}

// NormalizePackage returns the canonical comparison form of a package or
// footprint designator: trimmed, uppercased, with a leading library prefix
// ("Resistor_SMD:R_0603_1608Metric") reduced to the footprint name.
func NormalizePackage(pkg string) string {
	pkg = strings.TrimSpace(pkg)
	if idx := strings.LastIndex(pkg, ":"); idx >= 0 {
		pkg = pkg[idx+1:]
	}

	return strings.ToUpper(pkg)
}
