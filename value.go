package taproot

import (
	"errors"
	"fmt"
	"strconv"
)

// Value is one possible runtime result of an expression, as determined by
// static inference; analyzed code is never executed. Syntax-backed values
// are tree nodes (literals, containers, class/function definitions,
// modules); instances, bound/unbound methods and generators exist only
// during inference and hold references into the tree without being part of
// it.
type Value interface {
	// Attr resolves attribute access on the value. Misses are
	// *NotFoundError, inconsistent hierarchies *MroError.
	Attr(name string, ctx *Context) ([]Value, error)

	// Display renders a short human-readable description of the value.
	Display() string
}

// Callable is a Value that can stand in call position.
type Callable interface {
	Value

	// CallResult infers the possible results of calling the value from the
	// given call site. caller may be nil for synthetic calls.
	CallResult(caller *Call, ctx *Context) ([]Value, error)
}

// Uninferable is the explicit "no determinable value" sentinel. It is not
// an error: it absorbs attribute access and calls, yielding itself.
var Uninferable Value = uninferableValue{}

type uninferableValue struct{}

func (uninferableValue) Attr(string, *Context) ([]Value, error) {
	return []Value{Uninferable}, nil
}

func (uninferableValue) CallResult(*Call, *Context) ([]Value, error) {
	return []Value{Uninferable}, nil
}

func (uninferableValue) Display() string { return "Uninferable" }

// IsUninferable reports whether v is the Uninferable sentinel.
func IsUninferable(v Value) bool { return v == Uninferable }

// Instance is a runtime object of a class, produced only by inference.
type Instance struct {
	Class *ClassDef
}

func (i *Instance) Attr(name string, ctx *Context) ([]Value, error) {
	return instanceAttr(i, i.Class, name, orNew(ctx))
}

// CallResult dispatches through the class's __call__.
func (i *Instance) CallResult(caller *Call, ctx *Context) ([]Value, error) {
	ctx = orNew(ctx)
	callables, err := i.Attr("__call__", ctx)
	if err != nil {
		return nil, &InferenceError{Reason: i.Display() + " is not callable"}
	}
	var out []Value
	for _, c := range callables {
		fn, ok := c.(Callable)
		if !ok {
			continue
		}
		vs, cerr := fn.CallResult(caller, ctx)
		if cerr != nil {
			continue
		}
		out = append(out, vs...)
	}
	if len(out) == 0 {
		return nil, &InferenceError{Reason: "call of " + i.Display() + " yields nothing"}
	}
	return dedupValues(out), nil
}

func (i *Instance) Display() string {
	return "Instance of " + i.Class.QName()
}

// UnboundMethod proxies a function reached through a class rather than an
// instance.
type UnboundMethod struct {
	Func Callable // *FunctionDef or *Lambda
}

func (m *UnboundMethod) Attr(name string, ctx *Context) ([]Value, error) {
	if name == "__func__" {
		return []Value{m.Func}, nil
	}
	return m.Func.Attr(name, ctx)
}

func (m *UnboundMethod) CallResult(caller *Call, ctx *Context) ([]Value, error) {
	return m.Func.CallResult(caller, orNew(ctx))
}

func (m *UnboundMethod) Display() string {
	return "UnboundMethod " + callableQName(m.Func)
}

// BoundMethod is a function with its receiver bound.
type BoundMethod struct {
	UnboundMethod
	Self Value
}

func (m *BoundMethod) Attr(name string, ctx *Context) ([]Value, error) {
	if name == "__self__" {
		return []Value{m.Self}, nil
	}
	return m.UnboundMethod.Attr(name, ctx)
}

// CallResult binds the receiver into the context before delegating, so the
// function's first parameter infers to it.
func (m *BoundMethod) CallResult(caller *Call, ctx *Context) ([]Value, error) {
	return m.Func.CallResult(caller, orNew(ctx).withBound(m.Self))
}

func (m *BoundMethod) Display() string {
	return "BoundMethod " + callableQName(m.Func)
}

// Generator is the value a call to a yielding function produces.
type Generator struct {
	Func *FunctionDef
}

// Attr delegates to the builtin generator class, so send/throw/close and the
// iterator protocol resolve like any instance attribute.
func (g *Generator) Attr(name string, ctx *Context) ([]Value, error) {
	cls := builtinClass(g.Func, "generator")
	if cls == nil {
		return nil, &NotFoundError{Name: name, Target: g.Display()}
	}
	return instanceAttr(g, cls, name, orNew(ctx))
}

func (g *Generator) Display() string {
	return "Generator " + g.Func.QName()
}

// --- syntax-backed values ---

func (c *Const) Attr(name string, ctx *Context) ([]Value, error) {
	return literalAttr(c, c.Kind.builtinClassName(), name, ctx)
}

func (c *Const) Display() string {
	switch c.Kind {
	case ConstNone:
		return "None"
	case ConstBool:
		if b, _ := c.Value.(bool); b {
			return "True"
		}
		return "False"
	case ConstStr:
		s, _ := c.Value.(string)
		return strconv.Quote(s)
	case ConstBytes:
		s, _ := c.Value.(string)
		return "b" + strconv.Quote(s)
	case ConstEllipsis:
		return "Ellipsis"
	}
	return fmt.Sprint(c.Value)
}

func (l *List) Attr(name string, ctx *Context) ([]Value, error) {
	return literalAttr(l, "list", name, ctx)
}
func (l *List) Display() string { return "list" }

func (t *Tuple) Attr(name string, ctx *Context) ([]Value, error) {
	return literalAttr(t, "tuple", name, ctx)
}
func (t *Tuple) Display() string { return "tuple" }

func (s *Set) Attr(name string, ctx *Context) ([]Value, error) {
	return literalAttr(s, "set", name, ctx)
}
func (s *Set) Display() string { return "set" }

func (d *Dict) Attr(name string, ctx *Context) ([]Value, error) {
	return literalAttr(d, "dict", name, ctx)
}
func (d *Dict) Display() string { return "dict" }

// literalAttr resolves attribute access on a literal through its fixed
// builtin class, every literal of a kind sharing the one class tree.
func literalAttr(lit Value, className, name string, ctx *Context) ([]Value, error) {
	origin, _ := lit.(Node)
	cls := builtinClass(origin, className)
	if cls == nil {
		return nil, &NotFoundError{Name: name, Target: lit.Display()}
	}
	return instanceAttr(lit, cls, name, orNew(ctx))
}

// Attr searches the class's own body bindings, then its ancestors in method
// resolution order; plain functions surface as unbound methods. The fixed
// specials (__name__, __doc__, __module__) resolve when nothing shadows
// them.
func (c *ClassDef) Attr(name string, ctx *Context) ([]Value, error) {
	ctx = orNew(ctx)
	mro, err := c.MRO(ctx)
	if err != nil {
		return nil, err
	}
	var binds []Node
	for _, k := range mro {
		binds = append(binds, k.LocalBindings(name)...)
	}
	if len(binds) == 0 {
		if v, ok := c.specialAttr(name); ok {
			return []Value{v}, nil
		}
		return nil, &NotFoundError{Name: name, Target: c.QName()}
	}
	raw, err := inferBindings(name, binds, ctx)
	if err != nil {
		return nil, err
	}
	vals := make([]Value, 0, len(raw))
	for _, v := range raw {
		vals = append(vals, functionToMethod(v, c))
	}
	if len(vals) == 0 {
		return nil, &InferenceError{Node: c, Reason: "attribute " + name + " of " + c.QName() + " has no inferable value"}
	}
	return dedupValues(vals), nil
}

func (c *ClassDef) specialAttr(name string) (Value, bool) {
	switch name {
	case "__name__":
		return synthConst(c, ConstStr, c.Name), true
	case "__doc__":
		return synthConst(c, ConstStr, c.Doc), true
	case "__module__":
		mod := ""
		if r := c.Root(); r != nil {
			mod = r.Name
		}
		return synthConst(c, ConstStr, mod), true
	}
	return nil, false
}

// CallResult of a class is a fresh instance of it.
func (c *ClassDef) CallResult(*Call, *Context) ([]Value, error) {
	return []Value{&Instance{Class: c}}, nil
}

func (c *ClassDef) Display() string { return "Class " + c.QName() }

// Attr on a function is the small fixed callable protocol surface.
func (f *FunctionDef) Attr(name string, ctx *Context) ([]Value, error) {
	switch name {
	case "__name__":
		return []Value{synthConst(f, ConstStr, f.Name)}, nil
	case "__doc__":
		return []Value{synthConst(f, ConstStr, f.Doc)}, nil
	case "__module__":
		mod := ""
		if r := f.Root(); r != nil {
			mod = r.Name
		}
		return []Value{synthConst(f, ConstStr, mod)}, nil
	case "__defaults__":
		var elts []Node
		if f.Args != nil {
			elts = f.Args.defaultExprs()
		}
		t := &Tuple{base: newBase(Span{}), Elts: elts}
		t.setParent(f)
		t.setScope(f)
		return []Value{t}, nil
	}
	return nil, &NotFoundError{Name: name, Target: f.QName()}
}

// CallResult infers the function's return expressions. Yielding functions
// produce a single Generator instead; a body with no return statement
// returns None.
func (f *FunctionDef) CallResult(caller *Call, ctx *Context) ([]Value, error) {
	ctx = orNew(ctx)
	if f.generator {
		return []Value{&Generator{Func: f}}, nil
	}
	returns := f.returnStatements()
	if len(returns) == 0 {
		if len(f.Body) == 0 {
			return nil, &InferenceError{Node: f, Reason: f.QName() + " has no body"}
		}
		return []Value{synthConst(f, ConstNone, nil)}, nil
	}
	var out []Value
	for _, r := range returns {
		if r.Value == nil {
			out = append(out, synthConst(f, ConstNone, nil))
			continue
		}
		vs, err := inferAll(r.Value, ctx)
		if err != nil {
			out = append(out, Uninferable)
			continue
		}
		out = append(out, vs...)
	}
	return dedupValues(out), nil
}

func (f *FunctionDef) Display() string { return "Function " + f.QName() }

func (l *Lambda) Attr(name string, ctx *Context) ([]Value, error) {
	switch name {
	case "__name__":
		return []Value{synthConst(l, ConstStr, "<lambda>")}, nil
	case "__doc__":
		return []Value{synthConst(l, ConstNone, nil)}, nil
	}
	return nil, &NotFoundError{Name: name, Target: l.QName()}
}

func (l *Lambda) CallResult(caller *Call, ctx *Context) ([]Value, error) {
	return inferAll(l.Body, orNew(ctx))
}

func (l *Lambda) Display() string { return l.QName() }

// Attr resolves module attributes: locals first, then the synthesized
// module specials, then submodule import for packages.
func (m *Module) Attr(name string, ctx *Context) ([]Value, error) {
	ctx = orNew(ctx)
	if binds := m.LocalBindings(name); len(binds) > 0 {
		vals, err := inferBindings(name, binds, ctx)
		if err != nil {
			return nil, err
		}
		if len(vals) > 0 {
			return vals, nil
		}
		return nil, &InferenceError{Node: m, Reason: "attribute " + name + " of " + m.Name + " has no inferable value"}
	}
	if c, ok := m.specials[name]; ok {
		return []Value{c}, nil
	}
	if m.Package && m.session != nil {
		if sub, err := m.session.BuildModule(m.Name + "." + name); err == nil {
			return []Value{sub}, nil
		}
	}
	return nil, &NotFoundError{Name: name, Target: m.Name}
}

func (m *Module) Display() string { return "Module " + m.Name }

// --- shared attribute machinery ---

// instanceAttr resolves name the way runtime attribute access does:
// attributes recorded from receiver assignments in method bodies first, then
// class attributes through the MRO with functions bound to the receiver.
func instanceAttr(receiver Value, cls *ClassDef, name string, ctx *Context) ([]Value, error) {
	if name == "__class__" {
		return []Value{cls}, nil
	}
	mro, err := cls.MRO(ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, k := range mro {
		if binds := k.instanceAttrs[name]; len(binds) > 0 {
			vs, berr := inferBindings(name, binds, ctx)
			if berr != nil {
				return nil, berr
			}
			out = append(out, vs...)
		}
	}
	for _, k := range mro {
		binds := k.LocalBindings(name)
		if len(binds) == 0 {
			continue
		}
		raw, berr := inferBindings(name, binds, ctx)
		if berr != nil {
			return nil, berr
		}
		for _, v := range raw {
			out = append(out, bindAttr(receiver, v, ctx)...)
		}
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Name: name, Target: cls.QName() + " instance"}
	}
	return dedupValues(out), nil
}

// bindAttr adapts one class-attribute value for access through a receiver:
// functions become bound methods, classmethods bind the class, properties
// evaluate to their computed value, staticmethods pass through.
func bindAttr(receiver Value, v Value, ctx *Context) []Value {
	switch fv := v.(type) {
	case *FunctionDef:
		switch fv.methodKind() {
		case "staticmethod":
			return []Value{fv}
		case "classmethod":
			cls := classOf(receiver)
			if cls == nil {
				return []Value{fv}
			}
			return []Value{&BoundMethod{UnboundMethod{Func: fv}, cls}}
		case "property":
			vs, err := fv.CallResult(nil, ctx.withBound(receiver))
			if err != nil {
				return []Value{Uninferable}
			}
			return vs
		}
		return []Value{&BoundMethod{UnboundMethod{Func: fv}, receiver}}
	case *Lambda:
		if ps := positionalParams(fv.Args); len(ps) > 0 && ps[0].Name == "self" {
			return []Value{&BoundMethod{UnboundMethod{Func: fv}, receiver}}
		}
		return []Value{fv}
	case *UnboundMethod:
		return []Value{&BoundMethod{UnboundMethod{Func: fv.Func}, receiver}}
	}
	return []Value{v}
}

// functionToMethod adapts one value for access through a class.
func functionToMethod(v Value, cls *ClassDef) Value {
	fv, ok := v.(*FunctionDef)
	if !ok {
		return v
	}
	switch fv.methodKind() {
	case "classmethod":
		return &BoundMethod{UnboundMethod{Func: fv}, cls}
	case "staticmethod", "property":
		return fv
	}
	return &UnboundMethod{Func: fv}
}

// methodKind reports the builtin method transform a decorator applies.
func (f *FunctionDef) methodKind() string {
	for _, d := range f.Decorators {
		name := ""
		switch dn := d.(type) {
		case *Name:
			name = dn.Name
		case *Attribute:
			name = dn.Attr
		}
		switch name {
		case "classmethod", "staticmethod", "property":
			return name
		}
	}
	return ""
}

// inferBindings infers each binding node under the given lookup name,
// concatenating in binding order. Per-binding name misses are skipped and
// other resolution failures contribute Uninferable; strict contexts
// propagate instead.
func inferBindings(name string, binds []Node, ctx *Context) ([]Value, error) {
	ctx = orNew(ctx).withLookup(name)
	var out []Value
	for _, b := range binds {
		vs, err := inferAll(b, ctx)
		if err != nil {
			if ctx.strict {
				return nil, err
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) && errors.Is(err, ErrResolve) {
				out = append(out, Uninferable)
			}
			continue
		}
		out = append(out, vs...)
	}
	return dedupValues(out), nil
}

// builtinClass resolves a class from the builtins module of the session that
// owns origin's tree, nil when unavailable.
func builtinClass(origin Node, name string) *ClassDef {
	if origin == nil || name == "" {
		return nil
	}
	root := origin.Root()
	if root == nil || root.session == nil {
		return nil
	}
	b := root.session.Builtins()
	if b == nil {
		return nil
	}
	for _, n := range b.LocalBindings(name) {
		if cls, ok := n.(*ClassDef); ok {
			return cls
		}
	}
	return nil
}

// dedupValues drops repeats preserving first-seen order. Instances collapse
// by class: separately materialized instances of one class are one answer.
func dedupValues(vals []Value) []Value {
	if len(vals) < 2 {
		return vals
	}
	type instanceKey struct{ cls *ClassDef }
	seen := make(map[any]struct{}, len(vals))
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		k := any(v)
		if inst, ok := v.(*Instance); ok {
			k = instanceKey{inst.Class}
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func callableQName(c Callable) string {
	switch f := c.(type) {
	case *FunctionDef:
		return f.QName()
	case *Lambda:
		return f.QName()
	}
	return "<callable>"
}

func positionalParams(a *Arguments) []*Param {
	if a == nil {
		return nil
	}
	return a.Positional()
}

// synthConst builds a constant outside any source tree, anchored to parent
// for root and session access.
func synthConst(parent Node, kind ConstKind, payload any) *Const {
	c := &Const{base: newBase(Span{}), Kind: kind, Value: payload}
	if parent != nil {
		c.setParent(parent)
		if s := parent.Scope(); s != nil {
			c.setScope(s)
		}
	}
	return c
}

var (
	_ Value    = Uninferable
	_ Value    = (*Instance)(nil)
	_ Value    = (*Generator)(nil)
	_ Callable = (*Instance)(nil)
	_ Callable = (*BoundMethod)(nil)
	_ Callable = (*UnboundMethod)(nil)
	_ Callable = (*ClassDef)(nil)
	_ Callable = (*FunctionDef)(nil)
	_ Callable = (*Lambda)(nil)
	_ Value    = (*Module)(nil)
	_ Value    = (*Const)(nil)
	_ Value    = (*List)(nil)
	_ Value    = (*Tuple)(nil)
	_ Value    = (*Set)(nil)
	_ Value    = (*Dict)(nil)
)
