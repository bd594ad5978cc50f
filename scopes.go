package taproot

import (
	"fmt"
	"strings"
)

// scopeTable is the ordered name-binding table every scope owns. Binding
// order within a name is registration (source) order and is the only
// disambiguator between multiple bindings; there is no flow analysis.
type scopeTable struct {
	locals map[string][]Node
}

func (s *scopeTable) Locals() map[string][]Node {
	if s.locals == nil {
		s.locals = make(map[string][]Node)
	}
	return s.locals
}

func (s *scopeTable) LocalBindings(name string) []Node { return s.locals[name] }

func (s *scopeTable) setLocal(name string, n Node) {
	if s.locals == nil {
		s.locals = make(map[string][]Node)
	}
	s.locals[name] = append(s.locals[name], n)
}

// qnameIn builds a dotted qualified name from the enclosing frame chain.
func qnameIn(s ScopedNode, name string) string {
	p := s.Parent()
	if p == nil {
		return name
	}
	f := frameOf(p)
	if f == nil {
		return name
	}
	return f.QName() + "." + name
}

// Module is the root of one built tree; during inference it is also the
// value an import resolves to.
type Module struct {
	base
	scopeTable
	Name string // canonical dotted module name
	Path string // source path, empty for synthesized modules
	Doc  string
	Body []Node

	// Package marks modules built from a package directory.
	// PackageEntries then lists submodule short names in lexicographic
	// order, the package initializer included.
	Package        bool
	PackageEntries []string

	// Synthetic marks modules built from native stubs rather than source.
	Synthetic bool

	session  *Session
	specials map[string]*Const
}

// initSpecials synthesizes the module attribute constants (__name__ and
// friends) once the module identity is known. Called exactly once per build.
func (m *Module) initSpecials() {
	m.specials = map[string]*Const{
		"__name__": m.special(ConstStr, m.Name),
		"__file__": m.special(ConstStr, m.Path),
		"__doc__":  m.special(ConstStr, m.Doc),
	}
	if i := strings.LastIndex(m.Name, "."); i >= 0 {
		m.specials["__package__"] = m.special(ConstStr, m.Name[:i])
	} else if m.Package {
		m.specials["__package__"] = m.special(ConstStr, m.Name)
	} else {
		m.specials["__package__"] = m.special(ConstStr, "")
	}
}

func (m *Module) special(kind ConstKind, payload any) *Const {
	c := &Const{base: newBase(Span{}), Kind: kind, Value: payload}
	c.setParent(m)
	c.setScope(m)
	return c
}

func (m *Module) Children() []Node  { return m.Body }
func (m *Module) Scope() ScopedNode { return m }
func (m *Module) Root() *Module     { return m }
func (m *Module) ScopeName() string { return m.Name }
func (m *Module) QName() string     { return m.Name }

// Session returns the session that built and registered the module.
func (m *Module) Session() *Session { return m.session }

// RelativeName resolves a relative import against this module's package
// position: level counts leading dots, mod is the optional trailing dotted
// name. Escaping above the top-level package is an import error.
func (m *Module) RelativeName(mod string, level int) (string, error) {
	if level <= 0 {
		return mod, nil
	}
	if m.Package {
		level--
	}
	pkg := m.Name
	if level > 0 {
		if strings.Count(pkg, ".") < level {
			return "", &ImportError{
				Modname: mod,
				Err:     fmt.Errorf("relative import beyond top-level package of %s", m.Name),
			}
		}
		parts := strings.Split(pkg, ".")
		pkg = strings.Join(parts[:len(parts)-level], ".")
	}
	switch {
	case pkg == "":
		return mod, nil
	case mod == "":
		return pkg, nil
	}
	return pkg + "." + mod, nil
}

// ClassDef is a class definition: a scope, a value, and the anchor for
// method-resolution-order attribute search.
type ClassDef struct {
	base
	scopeTable
	Name       string
	Doc        string
	Bases      []Node
	Keywords   []*Keyword // class-creation keywords, metaclass= included
	Body       []Node
	Decorators []Node

	// instanceAttrs maps names assigned through the receiver parameter of
	// this class's methods (self.x = ...) to the assigning nodes.
	instanceAttrs map[string][]Node
}

func (c *ClassDef) Children() []Node {
	out := append([]Node{}, c.Decorators...)
	out = append(out, c.Bases...)
	for _, k := range c.Keywords {
		out = append(out, k)
	}
	return append(out, c.Body...)
}

func (c *ClassDef) Scope() ScopedNode { return c }
func (c *ClassDef) ScopeName() string { return c.Name }
func (c *ClassDef) QName() string     { return qnameIn(c, c.Name) }

// InstanceAttrs returns attribute names assigned on instances inside this
// class's methods, mapped to the assigning nodes in source order. The map is
// live; callers must not mutate it.
func (c *ClassDef) InstanceAttrs() map[string][]Node {
	if c.instanceAttrs == nil {
		c.instanceAttrs = make(map[string][]Node)
	}
	return c.instanceAttrs
}

func (c *ClassDef) setInstanceAttr(name string, n Node) {
	if c.instanceAttrs == nil {
		c.instanceAttrs = make(map[string][]Node)
	}
	c.instanceAttrs[name] = append(c.instanceAttrs[name], n)
}

// LocalAttr returns the class-body binding nodes for name, without touching
// ancestors. *NotFoundError when the class body does not bind it.
func (c *ClassDef) LocalAttr(name string) ([]Node, error) {
	if ns := c.LocalBindings(name); len(ns) > 0 {
		return ns, nil
	}
	return nil, &NotFoundError{Name: name, Target: c.QName()}
}

// FunctionDef is a function or method definition.
type FunctionDef struct {
	base
	scopeTable
	Name       string
	Doc        string
	Args       *Arguments
	Body       []Node
	Decorators []Node
	Returns    Node // return annotation, nil when absent
	Async      bool

	generator bool
	globals   map[string]bool
	nonlocals map[string]bool
}

func (f *FunctionDef) Children() []Node {
	out := append([]Node{}, f.Decorators...)
	if f.Args != nil {
		out = append(out, f.Args)
	}
	if f.Returns != nil {
		out = append(out, f.Returns)
	}
	return append(out, f.Body...)
}

func (f *FunctionDef) Scope() ScopedNode { return f }
func (f *FunctionDef) ScopeName() string { return f.Name }
func (f *FunctionDef) QName() string     { return qnameIn(f, f.Name) }

// IsGenerator reports whether the function body yields, making calls to it
// produce a Generator value.
func (f *FunctionDef) IsGenerator() bool { return f.generator }

// IsMethod reports whether the function is defined directly in a class body.
func (f *FunctionDef) IsMethod() bool {
	_, ok := f.Parent().(*ClassDef)
	return ok
}

// declaresGlobal reports whether name was declared global in this frame.
func (f *FunctionDef) declaresGlobal(name string) bool { return f.globals[name] }

// declaresNonlocal reports whether name was declared nonlocal in this frame.
func (f *FunctionDef) declaresNonlocal(name string) bool { return f.nonlocals[name] }

// returnStatements collects return statements in the function's own body,
// not descending into nested frames.
func (f *FunctionDef) returnStatements() []*Return {
	var out []*Return
	collectReturns(f.Body, &out)
	return out
}

func collectReturns(body []Node, out *[]*Return) {
	for _, n := range body {
		switch v := n.(type) {
		case *Return:
			*out = append(*out, v)
		case *FunctionDef, *ClassDef, *Lambda:
			// nested frame: its returns are not ours
		default:
			collectReturns(v.Children(), out)
		}
	}
}

// Lambda is an anonymous function expression.
type Lambda struct {
	base
	scopeTable
	Args *Arguments
	Body Node
}

func (l *Lambda) Children() []Node {
	var out []Node
	if l.Args != nil {
		out = append(out, l.Args)
	}
	return append(out, l.Body)
}

func (l *Lambda) Scope() ScopedNode { return l }
func (l *Lambda) ScopeName() string { return "<lambda>" }
func (l *Lambda) QName() string     { return qnameIn(l, "<lambda>") }

// CompKind tags a comprehension form.
type CompKind uint8

const (
	ListCompKind CompKind = iota
	SetCompKind
	DictCompKind
	GeneratorExpKind
)

func (k CompKind) String() string {
	switch k {
	case ListCompKind:
		return "<listcomp>"
	case SetCompKind:
		return "<setcomp>"
	case DictCompKind:
		return "<dictcomp>"
	}
	return "<genexpr>"
}

// Comp is a comprehension: list, set, and generator forms use Elt; dict
// comprehensions use Key and Value. Each comprehension owns a scope for its
// clause targets.
type Comp struct {
	base
	scopeTable
	Kind    CompKind
	Elt     Node
	Key     Node
	Value   Node
	Clauses []*CompClause
}

func (c *Comp) Children() []Node {
	out := childList(c.Elt, c.Key, c.Value)
	for _, cl := range c.Clauses {
		out = append(out, cl)
	}
	return out
}

func (c *Comp) Scope() ScopedNode { return c }
func (c *Comp) ScopeName() string { return c.Kind.String() }
func (c *Comp) QName() string     { return qnameIn(c, c.Kind.String()) }

// CompClause is one for-in clause inside a comprehension, with its filters.
type CompClause struct {
	base
	Target Node
	Iter   Node
	Ifs    []Node
	Async  bool
}

func (c *CompClause) Children() []Node {
	return append(childList(c.Target, c.Iter), c.Ifs...)
}
