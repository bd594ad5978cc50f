// Package pyparse adapts the tree-sitter Python grammar into the primitive
// syntax tree the taproot builder consumes: node kind, field access, ordered
// named children, source span, and text. It is the only package that touches
// tree-sitter types; everything above it sees plain Go values.
package pyparse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Grammar selects the grammar revision used to read analyzed source. It is
// configuration consumed here, orthogonal to the enriched tree above.
type Grammar int

const (
	// Python3 is the default grammar.
	Python3 Grammar = iota
	// Python2 additionally accepts legacy constructs such as the bare
	// print statement.
	Python2
)

func (g Grammar) String() string {
	if g == Python2 {
		return "python2"
	}
	return "python3"
}

// ParseGrammar maps a configuration string to a Grammar. The empty string
// means Python3.
func ParseGrammar(s string) (Grammar, error) {
	switch s {
	case "", "python3", "py3":
		return Python3, nil
	case "python2", "py2":
		return Python2, nil
	}
	return Python3, fmt.Errorf("pyparse: unknown grammar %q", s)
}

// Point is a zero-based row/column position.
type Point struct {
	Row int
	Col int
}

// Span is the source region a node covers.
type Span struct {
	Start     Point
	End       Point
	StartByte int
	EndByte   int
}

// Node is one primitive syntax node. Children holds named children in source
// order; grammar fields (left/right/name/body/...) are reachable by name.
// Comment nodes are dropped during conversion.
type Node struct {
	Kind    string
	Span    Span
	Missing bool

	text     []byte
	children []*Node
	fields   map[string][]*Node
	tokens   []string // keyword-shaped anonymous children (async, not, ...)
}

// Tree is a converted parse result. The tree-sitter tree itself is released
// before Parse returns; Nodes hold slices into Source.
type Tree struct {
	Root     *Node
	Source   []byte
	Grammar  Grammar
	HasError bool
}

// Parse runs tree-sitter over src and eagerly converts the whole concrete
// syntax tree. Syntax problems do not fail Parse: tree-sitter degrades to
// ERROR/missing nodes, which the converted tree reports via HasError and
// FirstError so the caller can reject the build.
func Parse(ctx context.Context, src []byte, g Grammar) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("pyparse: %w", err)
	}
	defer st.Close()

	root := st.RootNode()
	return &Tree{
		Root:     convert(root, src),
		Source:   src,
		Grammar:  g,
		HasError: root.HasError(),
	}, nil
}

func convert(n *sitter.Node, src []byte) *Node {
	out := &Node{
		Kind: n.Type(),
		Span: Span{
			Start:     Point{Row: int(n.StartPoint().Row), Col: int(n.StartPoint().Column)},
			End:       Point{Row: int(n.EndPoint().Row), Col: int(n.EndPoint().Column)},
			StartByte: int(n.StartByte()),
			EndByte:   int(n.EndByte()),
		},
		Missing: n.IsMissing(),
		text:    src[n.StartByte():n.EndByte()],
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child.Type() == "comment" {
			continue
		}
		field := n.FieldNameForChild(i)

		var conv *Node
		if child.IsNamed() || field != "" {
			conv = convert(child, src)
		}
		if field != "" {
			if out.fields == nil {
				out.fields = make(map[string][]*Node)
			}
			out.fields[field] = append(out.fields[field], conv)
		}
		switch {
		case child.IsNamed():
			out.children = append(out.children, conv)
		case field == "" && isWordToken(child.Type()):
			out.tokens = append(out.tokens, child.Type())
		}
	}
	return out
}

// isWordToken reports whether an anonymous token is keyword-shaped and worth
// recording (async, await, not, ...). Punctuation tokens are dropped.
func isWordToken(kind string) bool {
	if kind == "" {
		return false
	}
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if (c < 'a' || c > 'z') && c != '_' {
			return false
		}
	}
	return true
}

// Text returns the source text the node covers.
func (n *Node) Text() string { return string(n.text) }

// Children returns the named children in source order.
func (n *Node) Children() []*Node { return n.children }

// Field returns the first child stored under a grammar field name, or nil.
func (n *Node) Field(name string) *Node {
	fs := n.fields[name]
	if len(fs) == 0 {
		return nil
	}
	return fs[0]
}

// Fields returns every child stored under a grammar field name. Some fields
// repeat (comparison operators, for example).
func (n *Node) Fields(name string) []*Node { return n.fields[name] }

// HasToken reports whether the node carries the given anonymous keyword
// token, e.g. "async" on a function definition.
func (n *Node) HasToken(kind string) bool {
	for _, t := range n.tokens {
		if t == kind {
			return true
		}
	}
	return false
}

// IsError reports whether this node itself is an ERROR or missing node.
func (n *Node) IsError() bool { return n.Kind == "ERROR" || n.Missing }

// FirstError returns the first ERROR or missing node in document order, or
// nil when the tree parsed cleanly.
func (t *Tree) FirstError() *Node { return firstError(t.Root) }

func firstError(n *Node) *Node {
	if n.IsError() {
		return n
	}
	for _, c := range n.children {
		if e := firstError(c); e != nil {
			return e
		}
	}
	return nil
}
