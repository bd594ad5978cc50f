package taproot

// childList flattens the given nodes into a children slice, skipping nils.
func childList(ns ...Node) []Node {
	out := make([]Node, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// ConstKind tags a literal's payload.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstStr
	ConstBytes
	ConstEllipsis
)

func (k ConstKind) String() string {
	switch k {
	case ConstNone:
		return "NoneType"
	case ConstBool:
		return "bool"
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstStr:
		return "str"
	case ConstBytes:
		return "bytes"
	case ConstEllipsis:
		return "ellipsis"
	}
	return "const"
}

// builtinClassName names the builtins class that serves attribute lookups
// for literals of this kind. Empty when no class backs the kind.
func (k ConstKind) builtinClassName() string {
	switch k {
	case ConstBool:
		return "bool"
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstStr:
		return "str"
	case ConstBytes:
		return "bytes"
	case ConstNone:
		return "NoneType"
	}
	return ""
}

// Const is a literal expression. Value holds the decoded payload: int64,
// float64, string (str and bytes), bool, or nil for None and Ellipsis.
type Const struct {
	base
	Kind  ConstKind
	Value any
}

func (c *Const) Children() []Node { return nil }

// Name is a read reference to a name.
type Name struct {
	base
	Name string
}

func (n *Name) Children() []Node { return nil }

// AssignName is a name in binding position: assignment target, for-loop
// target, import alias, except alias, comprehension target.
type AssignName struct {
	base
	Name string
}

func (n *AssignName) Children() []Node { return nil }

// Attribute is a read attribute access, base.attr.
type Attribute struct {
	base
	Value Node
	Attr  string
}

func (a *Attribute) Children() []Node { return childList(a.Value) }

// AssignAttr is an attribute access in binding position, e.g. the target of
// self.x = 1. Instance attribute tables are populated from these.
type AssignAttr struct {
	base
	Value Node
	Attr  string
}

func (a *AssignAttr) Children() []Node { return childList(a.Value) }

// Keyword is one name=value argument at a call site. Arg is empty for a
// **mapping argument.
type Keyword struct {
	base
	Arg   string
	Value Node
}

func (k *Keyword) Children() []Node { return childList(k.Value) }

// Call is a call expression.
type Call struct {
	base
	Func     Node
	Args     []Node
	Keywords []*Keyword
}

func (c *Call) Children() []Node {
	out := childList(c.Func)
	out = append(out, c.Args...)
	for _, k := range c.Keywords {
		out = append(out, k)
	}
	return out
}

// BinOp is a binary arithmetic or bitwise expression.
type BinOp struct {
	base
	Left  Node
	Op    string
	Right Node
}

func (b *BinOp) Children() []Node { return childList(b.Left, b.Right) }

// BoolOp is an and/or chain.
type BoolOp struct {
	base
	Op     string // "and" or "or"
	Values []Node
}

func (b *BoolOp) Children() []Node { return b.Values }

// UnaryOp is a unary expression (-x, +x, ~x, not x).
type UnaryOp struct {
	base
	Op      string
	Operand Node
}

func (u *UnaryOp) Children() []Node { return childList(u.Operand) }

// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	base
	Left        Node
	Ops         []string
	Comparators []Node
}

func (c *Compare) Children() []Node {
	return append(childList(c.Left), c.Comparators...)
}

// Subscript is value[slice].
type Subscript struct {
	base
	Value Node
	Index Node
}

func (s *Subscript) Children() []Node { return childList(s.Value, s.Index) }

// Slice is a lower:upper:step subscript index.
type Slice struct {
	base
	Lower Node
	Upper Node
	Step  Node
}

func (s *Slice) Children() []Node { return childList(s.Lower, s.Upper, s.Step) }

// List is a list display.
type List struct {
	base
	Elts []Node
}

func (l *List) Children() []Node { return l.Elts }

// Tuple is a tuple display (parenthesized or bare).
type Tuple struct {
	base
	Elts []Node
}

func (t *Tuple) Children() []Node { return t.Elts }

// Set is a set display.
type Set struct {
	base
	Elts []Node
}

func (s *Set) Children() []Node { return s.Elts }

// Dict is a dict display. Entries pair Keys[i] with Values[i]; a nil key
// marks a **mapping unpacking entry.
type Dict struct {
	base
	Keys   []Node
	Values []Node
}

func (d *Dict) Children() []Node {
	out := make([]Node, 0, len(d.Keys)+len(d.Values))
	for i := range d.Values {
		if i < len(d.Keys) && d.Keys[i] != nil {
			out = append(out, d.Keys[i])
		}
		out = append(out, d.Values[i])
	}
	return out
}

// IfExp is the conditional expression body if test else orelse.
type IfExp struct {
	base
	Test   Node
	Body   Node
	Orelse Node
}

func (i *IfExp) Children() []Node { return childList(i.Test, i.Body, i.Orelse) }

// Starred is *value in call or assignment position.
type Starred struct {
	base
	Value Node
}

func (s *Starred) Children() []Node { return childList(s.Value) }

// Yield is a yield or yield-from expression. Its presence in a function body
// makes calls to that function produce a Generator.
type Yield struct {
	base
	Value Node
	From  bool
}

func (y *Yield) Children() []Node { return childList(y.Value) }

// Await is an await expression.
type Await struct {
	base
	Value Node
}

func (a *Await) Children() []Node { return childList(a.Value) }

// JoinedStr is an f-string: literal chunks and interpolated expressions.
type JoinedStr struct {
	base
	Parts []Node
}

func (j *JoinedStr) Children() []Node { return j.Parts }

// ParamKind distinguishes how a parameter binds at call sites.
type ParamKind uint8

const (
	ParamPositional ParamKind = iota // positional-or-keyword
	ParamVararg                      // *args
	ParamKwOnly                      // keyword-only
	ParamKwarg                       // **kwargs
)

// Param is one formal parameter. It is the binding node registered in the
// function's scope for the parameter name.
type Param struct {
	base
	Name       string
	Annotation Node
	Default    Node
	Kind       ParamKind
}

func (p *Param) Children() []Node { return childList(p.Annotation, p.Default) }

// Arguments groups a callable's formal parameters in declaration order.
type Arguments struct {
	base
	Params []*Param
}

func (a *Arguments) Children() []Node {
	out := make([]Node, 0, len(a.Params))
	for _, p := range a.Params {
		out = append(out, p)
	}
	return out
}

// Find returns the parameter with the given name, or nil.
func (a *Arguments) Find(name string) *Param {
	for _, p := range a.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Positional returns the positional-or-keyword parameters in order.
func (a *Arguments) Positional() []*Param {
	var out []*Param
	for _, p := range a.Params {
		if p.Kind == ParamPositional {
			out = append(out, p)
		}
	}
	return out
}

// DefaultValue returns the declared default expression for the named
// parameter. It returns *NoDefaultError when the parameter exists without a
// default and *NotFoundError when no such parameter is declared.
func (a *Arguments) DefaultValue(name string) (Node, error) {
	p := a.Find(name)
	if p == nil {
		return nil, &NotFoundError{Name: name, Target: "arguments"}
	}
	if p.Default == nil {
		fn := "<callable>"
		if f, ok := frameOf(a).(*FunctionDef); ok {
			fn = f.QName()
		}
		return nil, &NoDefaultError{Func: fn, Param: name}
	}
	return p.Default, nil
}
