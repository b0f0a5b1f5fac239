package sexp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchematic = `(kicad_sch
  (version 20230121)
  (uuid "aaaa-bbbb")
  (unknown_tag (deeply (nested "stuff" 1 2 3)))
  (symbol
    (lib_id "Device:R")
    (uuid "1111-2222")
    (property "Reference" "R1"
      (at 0 0 0)
    )
    (property "Value" "10K")
  )
)
`

func TestParse_Structure(t *testing.T) {
	doc, err := Parse([]byte(sampleSchematic))
	require.NoError(t, err)

	root := doc.Root()
	assert.Equal(t, "kicad_sch", root.Tag())

	version := root.List("version")
	require.NotNil(t, version)
	assert.Equal(t, "20230121", version.StringAt(1))

	symbol := root.List("symbol")
	require.NotNil(t, symbol)
	assert.Equal(t, "Device:R", symbol.List("lib_id").StringAt(1))

	props := symbol.Lists("property")
	require.Len(t, props, 2)
	assert.Equal(t, "Reference", props[0].StringAt(1))
	assert.Equal(t, "R1", props[0].StringAt(2))
	assert.Equal(t, "Value", props[1].StringAt(1))
	assert.Equal(t, "10K", props[1].StringAt(2))
}

func TestParse_UnknownTagsPreserved(t *testing.T) {
	doc, err := Parse([]byte(sampleSchematic))
	require.NoError(t, err)

	unknown := doc.Root().List("unknown_tag")
	require.NotNil(t, unknown)
	assert.Equal(t, "stuff", unknown.List("deeply").List("nested").StringAt(1))
}

func TestBytes_VerbatimRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleSchematic))
	require.NoError(t, err)

	assert.Equal(t, sampleSchematic, string(doc.Bytes()))
}

func TestBytes_RoundTripOddFormatting(t *testing.T) {
	// Irregular whitespace, escapes, and bare atoms must all survive.
	src := "(top (a\t\"he said \\\"hi\\\"\"   )\r\n  (b 1.5 -7)  )"

	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(doc.Bytes()))

	a := doc.Root().List("a")
	require.NotNil(t, a)
	assert.Equal(t, `he said "hi"`, a.StringAt(1))
}

func TestSetValue_TargetedEdit(t *testing.T) {
	doc, err := Parse([]byte(sampleSchematic))
	require.NoError(t, err)

	symbol := doc.Root().List("symbol")
	valueProp := symbol.Lists("property")[1]
	atom, ok := valueProp.Atom(2)
	require.True(t, ok)

	atom.SetValue("4K7")

	out := string(doc.Bytes())
	assert.Contains(t, out, `(property "Value" "4K7")`)
	// Everything else is untouched.
	assert.Contains(t, out, `(property "Reference" "R1"`)
	assert.Contains(t, out, `(unknown_tag (deeply (nested "stuff" 1 2 3)))`)
	assert.Contains(t, out, "(version 20230121)")
	assert.Equal(t, "4K7", atom.Value())
}

func TestSetValue_EscapesSpecials(t *testing.T) {
	doc, err := Parse([]byte(`(p (property "Value" "x"))`))
	require.NoError(t, err)

	atom, ok := doc.Root().List("property").Atom(2)
	require.True(t, ok)
	atom.SetValue(`a "quoted" value`)

	out := string(doc.Bytes())
	assert.Contains(t, out, `"a \"quoted\" value"`)

	// The rewritten output parses back to the same decoded value.
	reparsed, err := Parse(doc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, `a "quoted" value`, reparsed.Root().List("property").StringAt(2))
}

func TestSetValue_BareAtomStaysBare(t *testing.T) {
	doc, err := Parse([]byte(`(flags (dnp no))`))
	require.NoError(t, err)

	atom, ok := doc.Root().List("dnp").Atom(1)
	require.True(t, ok)
	atom.SetValue("yes")

	assert.Equal(t, `(flags (dnp yes))`, string(doc.Bytes()))
}

func TestAppend_BeforeClosingDelimiter(t *testing.T) {
	doc, err := Parse([]byte("(symbol\n  (property \"Value\" \"10K\")\n)"))
	require.NoError(t, err)

	doc.Root().Append("\n  (property \"Distributor\" \"Mouser\")")

	out := string(doc.Bytes())
	assert.Equal(t, "(symbol\n  (property \"Value\" \"10K\")\n  (property \"Distributor\" \"Mouser\")\n)", out)

	reparsed, err := Parse(doc.Bytes())
	require.NoError(t, err)
	assert.Len(t, reparsed.Root().Lists("property"), 2)
}

func TestAppend_EmptyListKeepsDelimiters(t *testing.T) {
	doc, err := Parse([]byte(`()`))
	require.NoError(t, err)

	doc.Root().Append("flags")

	assert.Equal(t, `(flags)`, string(doc.Bytes()))

	reparsed, err := Parse(doc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "flags", reparsed.Root().Tag())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"only whitespace", "   \n\t"},
		{"unbalanced open", "(a (b)"},
		{"unterminated string", `(a "oops)`},
		{"bare root atom", "atom"},
		{"trailing content", "(a) (b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestParse_ErrorCarriesLine(t *testing.T) {
	_, err := Parse([]byte("(a\n(b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated list")
}
