// Package sexp parses the tagged parenthesized-list text format used by
// design files into a tree that round-trips byte-for-byte.
//
// Every node remembers its source span; serializing an unmodified node
// re-emits the original bytes verbatim, unknown tags included. Mutation
// replaces only the targeted atom's text, so whitespace, formatting, and
// constructs the parser does not understand all survive a rewrite.
package sexp

import (
	"bytes"
	"fmt"
	"strings"

	"partlinker/internal/errors"
)

// Document is a parsed design file holding the original source bytes and
// the node tree over them.
type Document struct {
	src  []byte
	root *Node
}

// Node is one element of the parse tree: either a list "(tag child...)"
// or an atom (quoted string or bare token).
type Node struct {
	parent *Node

	start int // byte offset of the node's first byte
	end   int // byte offset one past the node's last byte

	list     bool
	children []*Node

	value  string // decoded atom text
	quoted bool

	// Mutation state. repl holds the re-encoded atom text; appended holds
	// raw text inserted before a list's closing delimiter.
	repl     *string
	appended []string
	dirty    bool
}

// Parse reads src into a document. Parse errors carry the 1-based line of
// the offending byte; the caller attaches the file path.
func Parse(src []byte) (*Document, error) {
	p := &parser{src: src, line: 1}
	p.skipSpace()
	if p.pos >= len(src) {
		return nil, parseError(p.line, "empty document")
	}

	root, err := p.parseNode(nil)
	if err != nil {
		return nil, err
	}
	if !root.list {
		return nil, parseError(p.line, "document root must be a list")
	}

	p.skipSpace()
	if p.pos < len(src) {
		return nil, parseError(p.line, "trailing content after document root")
	}

	return &Document{src: src, root: root}, nil
}

// Root returns the document's root list.
func (d *Document) Root() *Node {
	return d.root
}

// Bytes serializes the document. Untouched subtrees are copied verbatim
// from the original source.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(d.src[:d.root.start])
	d.writeNode(&buf, d.root)
	buf.Write(d.src[d.root.end:])

	return buf.Bytes()
}

func (d *Document) writeNode(buf *bytes.Buffer, n *Node) {
	if !n.dirty {
		buf.Write(d.src[n.start:n.end])
		return
	}

	if n.repl != nil {
		buf.WriteString(*n.repl)
		return
	}

	// Dirty list: interleave original inter-child bytes with rewritten
	// children. Appended text lands right after the last child so the
	// original gap before the closing delimiter is preserved behind it.
	// A childless list has no child to anchor on, so step past the
	// opening delimiter before emitting appended text.
	pos := n.start
	if len(n.children) == 0 {
		buf.Write(d.src[pos : pos+1])
		pos++
	}
	for _, child := range n.children {
		buf.Write(d.src[pos:child.start])
		d.writeNode(buf, child)
		pos = child.end
	}
	for _, text := range n.appended {
		buf.WriteString(text)
	}
	buf.Write(d.src[pos:n.end])
}

// IsList reports whether the node is a parenthesized list.
func (n *Node) IsList() bool {
	return n.list
}

// Tag returns the list's leading atom, or "" for atoms and empty lists.
// Accessors tolerate a nil receiver so lookups over absent tags chain
// without guards.
func (n *Node) Tag() string {
	if n == nil || !n.list || len(n.children) == 0 || n.children[0].list {
		return ""
	}

	return n.children[0].value
}

// Value returns the decoded text of an atom node, reflecting any
// mutation applied through SetValue.
func (n *Node) Value() string {
	return n.value
}

// Children returns the list's elements, the tag atom included.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}

	return n.children
}

// Lists returns every child list with the given tag.
func (n *Node) Lists(tag string) []*Node {
	if n == nil {
		return nil
	}

	var result []*Node
	for _, child := range n.children {
		if child.list && child.Tag() == tag {
			result = append(result, child)
		}
	}

	return result
}

// List returns the first child list with the given tag, or nil.
func (n *Node) List(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.children {
		if child.list && child.Tag() == tag {
			return child
		}
	}

	return nil
}

// Atom returns the i-th child when it is an atom.
func (n *Node) Atom(i int) (*Node, bool) {
	if n == nil || i < 0 || i >= len(n.children) || n.children[i].list {
		return nil, false
	}

	return n.children[i], true
}

// StringAt returns the decoded value of the i-th child atom, or "".
func (n *Node) StringAt(i int) string {
	atom, ok := n.Atom(i)
	if !ok {
		return ""
	}

	return atom.value
}

// SetValue replaces an atom's text. Quoted atoms stay quoted; bare atoms
// are re-quoted only when the new value needs it.
func (n *Node) SetValue(value string) {
	if n.list {
		return
	}

	encoded := value
	if n.quoted || needsQuoting(value) {
		encoded = encodeString(value)
	}
	n.value = value
	n.repl = &encoded
	n.markDirty()
}

// Append inserts raw text after the list's last element, ahead of the
// closing delimiter. The text must itself be a well-formed element.
func (n *Node) Append(text string) {
	if !n.list {
		return
	}
	n.appended = append(n.appended, text)
	n.markDirty()
}

func (n *Node) markDirty() {
	for cur := n; cur != nil && !cur.dirty; cur = cur.parent {
		cur.dirty = true
	}
}

func needsQuoting(value string) bool {
	if value == "" {
		return true
	}

	return strings.ContainsAny(value, "() \t\r\n\"\\")
}

func encodeString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(value[i])
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteByte(value[i])
		}
	}
	b.WriteByte('"')

	return b.String()
}

type parser struct {
	src  []byte
	pos  int
	line int
}

func parseError(line int, format string, args ...interface{}) error {
	err := errors.NewParseError("malformed_document", fmt.Sprintf(format, args...))
	err.Line = line

	return err
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\n':
			p.line++
			p.pos++
		case ' ', '\t', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseNode(parent *Node) (*Node, error) {
	if p.src[p.pos] == '(' {
		return p.parseList(parent)
	}

	return p.parseAtom(parent)
}

func (p *parser) parseList(parent *Node) (*Node, error) {
	n := &Node{parent: parent, start: p.pos, list: true}
	openLine := p.line
	p.pos++ // consume '('

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, parseError(openLine, "unterminated list")
		}
		if p.src[p.pos] == ')' {
			p.pos++
			n.end = p.pos

			return n, nil
		}

		child, err := p.parseNode(n)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
}

func (p *parser) parseAtom(parent *Node) (*Node, error) {
	if p.src[p.pos] == '"' {
		return p.parseString(parent)
	}

	n := &Node{parent: parent, start: p.pos}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == '"' || c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			break
		}
		p.pos++
	}
	n.end = p.pos
	n.value = string(p.src[n.start:n.end])

	return n, nil
}

func (p *parser) parseString(parent *Node) (*Node, error) {
	n := &Node{parent: parent, start: p.pos, quoted: true}
	openLine := p.line
	p.pos++ // consume opening quote

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			n.end = p.pos
			n.value = b.String()

			return n, nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return nil, parseError(openLine, "unterminated string escape")
			}
			p.pos++
			switch p.src[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(p.src[p.pos])
			}
			p.pos++
		case '\n':
			p.line++
			b.WriteByte(c)
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return nil, parseError(openLine, "unterminated string")
}
