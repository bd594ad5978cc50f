package taproot

import "sync/atomic"

// Span locates a node in its source file. Line is 1-based, Col is a 0-based
// byte column, matching how analysis tools report positions. Synthesized
// nodes carry a zero Span.
type Span struct {
	Line    int
	Col     int
	EndLine int
	EndCol  int
}

// Node is one enriched syntax node: a typed construct with non-owning parent
// and scope back-references. The set of implementations is closed; nodes are
// immutable once their module is built.
type Node interface {
	// Parent returns the owning parent node, nil at the module root.
	Parent() Node
	// Scope returns the scope the node's names resolve in. A scope node
	// returns itself; see ScopedNode.
	Scope() ScopedNode
	// Root returns the module at the top of the parent chain.
	Root() *Module
	// Span returns the node's source position.
	Span() Span
	// Children returns the node's children in source order.
	Children() []Node

	nodeID() uint64
	setParent(Node)
	setScope(ScopedNode)
}

// ScopedNode is a node owning a name-binding table: module, class, function,
// lambda, or comprehension.
type ScopedNode interface {
	Node
	// ScopeName identifies the scope: module or definition name, or a
	// placeholder like "<lambda>".
	ScopeName() string
	// QName returns the dotted qualified name of the scope.
	QName() string
	// Locals returns the live binding table, name to binding nodes in
	// source order. Callers must not mutate it.
	Locals() map[string][]Node
	// LocalBindings returns the binding nodes for one name in this scope
	// only, in source order.
	LocalBindings(name string) []Node

	scopeLookup(from Node, name string) (ScopedNode, []Node, error)
	setLocal(name string, n Node)
}

var lastNodeID atomic.Uint64

// base carries what every node shares: process-unique identity, span, and
// parent/scope back-references. Identity doubles as the node's cache and
// cycle-guard key.
type base struct {
	id     uint64
	span   Span
	parent Node
	scope  ScopedNode
}

func newBase(span Span) base {
	return base{id: lastNodeID.Add(1), span: span}
}

func (b *base) Parent() Node          { return b.parent }
func (b *base) Span() Span            { return b.span }
func (b *base) Scope() ScopedNode     { return b.scope }
func (b *base) nodeID() uint64        { return b.id }
func (b *base) setParent(p Node)      { b.parent = p }
func (b *base) setScope(s ScopedNode) { b.scope = s }

func (b *base) Root() *Module {
	n := b.parent
	if n == nil {
		return nil
	}
	for n.Parent() != nil {
		n = n.Parent()
	}
	m, _ := n.(*Module)
	return m
}

// containedIn reports whether n sits inside container (or is container).
func containedIn(n, container Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p == container {
			return true
		}
	}
	return false
}

// containedInAny reports whether n sits inside any of the given nodes.
func containedInAny(n Node, containers []Node) bool {
	for _, c := range containers {
		if c != nil && containedIn(n, c) {
			return true
		}
	}
	return false
}

// frameOf returns the nearest enclosing frame: module, function, lambda, or
// class. Comprehension scopes are not frames.
func frameOf(n Node) ScopedNode {
	for p := n; p != nil; p = p.Parent() {
		switch p.(type) {
		case *Module, *FunctionDef, *Lambda, *ClassDef:
			return p.(ScopedNode)
		}
	}
	return nil
}

// parentScope returns the scope enclosing s, nil at the module.
func parentScope(s ScopedNode) ScopedNode {
	p := s.Parent()
	if p == nil {
		return nil
	}
	return p.Scope()
}
