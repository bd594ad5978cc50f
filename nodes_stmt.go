package taproot

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	base
	Value Node
}

func (e *ExprStmt) Children() []Node { return childList(e.Value) }

// Assign binds one or more targets to a value. Chained assignments
// (a = b = expr) flatten into Targets. Annotation is non-nil for the
// annotated single-target form.
type Assign struct {
	base
	Targets    []Node
	Value      Node
	Annotation Node
}

func (a *Assign) Children() []Node {
	out := append([]Node{}, a.Targets...)
	return append(out, childList(a.Annotation, a.Value)...)
}

// AugAssign is an augmented assignment, target op= value.
type AugAssign struct {
	base
	Target Node
	Op     string
	Value  Node
}

func (a *AugAssign) Children() []Node { return childList(a.Target, a.Value) }

// Return is a return statement. Value is nil for a bare return.
type Return struct {
	base
	Value Node
}

func (r *Return) Children() []Node { return childList(r.Value) }

// Delete is a del statement.
type Delete struct {
	base
	Targets []Node
}

func (d *Delete) Children() []Node { return d.Targets }

// ImportAlias is one name in an import statement: the imported dotted name
// and the optional binding alias.
type ImportAlias struct {
	Name   string
	AsName string
}

// BoundName returns the name the alias binds in the importing scope: the
// alias when present, otherwise the first component of the dotted name.
func (a ImportAlias) BoundName() string {
	if a.AsName != "" {
		return a.AsName
	}
	for i := 0; i < len(a.Name); i++ {
		if a.Name[i] == '.' {
			return a.Name[:i]
		}
	}
	return a.Name
}

// Import is an import statement. The statement node itself is registered as
// the binding for each alias it introduces.
type Import struct {
	base
	Names []ImportAlias
}

func (i *Import) Children() []Node { return nil }

// realName returns the full dotted module a bound name refers to, or "" when
// the import does not bind that name.
func (i *Import) realName(bound string) string {
	for _, a := range i.Names {
		if a.BoundName() != bound {
			continue
		}
		if a.AsName != "" {
			// import a.b as c binds c to a.b.
			return a.Name
		}
		// import a.b binds a to module a.
		return a.BoundName()
	}
	return ""
}

// ImportFrom is a from-import statement. Level counts leading dots for
// relative imports; Module is empty for a bare relative import.
type ImportFrom struct {
	base
	Module   string
	Names    []ImportAlias
	Level    int
	Wildcard bool
}

func (i *ImportFrom) Children() []Node { return nil }

// importedName returns the attribute the bound name refers to inside the
// source module, or "" when this statement does not bind it.
func (i *ImportFrom) importedName(bound string) string {
	for _, a := range i.Names {
		if a.BoundName() == bound {
			return a.Name
		}
	}
	return ""
}

// If is a conditional statement; elif chains nest in Orelse.
type If struct {
	base
	Test   Node
	Body   []Node
	Orelse []Node
}

func (i *If) Children() []Node {
	out := childList(i.Test)
	out = append(out, i.Body...)
	return append(out, i.Orelse...)
}

// While is a while loop.
type While struct {
	base
	Test   Node
	Body   []Node
	Orelse []Node
}

func (w *While) Children() []Node {
	out := childList(w.Test)
	out = append(out, w.Body...)
	return append(out, w.Orelse...)
}

// For is a for loop. Target binds each element of Iter.
type For struct {
	base
	Target Node
	Iter   Node
	Body   []Node
	Orelse []Node
	Async  bool
}

func (f *For) Children() []Node {
	out := childList(f.Target, f.Iter)
	out = append(out, f.Body...)
	return append(out, f.Orelse...)
}

// WithItem pairs a context manager expression with its optional binding.
type WithItem struct {
	base
	ContextExpr Node
	Optional    Node // as-target, nil when absent
}

func (w *WithItem) Children() []Node { return childList(w.ContextExpr, w.Optional) }

// With is a with statement.
type With struct {
	base
	Items []*WithItem
	Body  []Node
	Async bool
}

func (w *With) Children() []Node {
	out := make([]Node, 0, len(w.Items)+len(w.Body))
	for _, it := range w.Items {
		out = append(out, it)
	}
	return append(out, w.Body...)
}

// ExceptHandler is one except clause. Name, when present, binds an instance
// of the handled exception type.
type ExceptHandler struct {
	base
	Type Node
	Name *AssignName
	Body []Node
}

func (e *ExceptHandler) Children() []Node {
	out := childList(e.Type)
	if e.Name != nil {
		out = append(out, e.Name)
	}
	return append(out, e.Body...)
}

// Try is a try statement with handlers, else, and finally blocks.
type Try struct {
	base
	Body     []Node
	Handlers []*ExceptHandler
	Orelse   []Node
	Final    []Node
}

func (t *Try) Children() []Node {
	out := append([]Node{}, t.Body...)
	for _, h := range t.Handlers {
		out = append(out, h)
	}
	out = append(out, t.Orelse...)
	return append(out, t.Final...)
}

// Raise is a raise statement.
type Raise struct {
	base
	Exc   Node
	Cause Node
}

func (r *Raise) Children() []Node { return childList(r.Exc, r.Cause) }

// Assert is an assert statement.
type Assert struct {
	base
	Test Node
	Msg  Node
}

func (a *Assert) Children() []Node { return childList(a.Test, a.Msg) }

// Global declares names as module-scope for the enclosing function. It
// short-circuits lookup and redirects bindings to the module table.
type Global struct {
	base
	Names []string
}

func (g *Global) Children() []Node { return nil }

// Nonlocal declares names as belonging to the nearest enclosing function
// scope that binds them.
type Nonlocal struct {
	base
	Names []string
}

func (n *Nonlocal) Children() []Node { return nil }

// Pass is the pass statement.
type Pass struct{ base }

func (p *Pass) Children() []Node { return nil }

// Break is the break statement.
type Break struct{ base }

func (b *Break) Children() []Node { return nil }

// Continue is the continue statement.
type Continue struct{ base }

func (c *Continue) Children() []Node { return nil }
