package taproot

import (
	"strconv"
	"strings"

	"github.com/jward/taproot/internal/pyparse"
)

// builder converts one parsed source tree into the enriched node tree:
// typed nodes, parent and scope back-references, and populated binding
// tables. Scope state is a stack mirroring the frames being built.
type builder struct {
	module *Module
	scope  ScopedNode
	stack  []ScopedNode
	funcs  []*FunctionDef
}

// buildModule converts a parse tree into a registered-shape module. Trees
// containing ERROR or missing nodes are rejected whole.
func buildModule(t *pyparse.Tree, name, path string, pkg bool, sess *Session) (*Module, error) {
	if e := t.FirstError(); e != nil {
		return nil, &SyntaxError{Path: path, Line: e.Span.Start.Row + 1}
	}
	m := &Module{
		base:    newBase(spanOf(t.Root.Span)),
		Name:    name,
		Path:    path,
		Package: pkg,
		session: sess,
	}
	b := &builder{module: m, scope: m, stack: []ScopedNode{m}}
	m.Body = b.stmtsIn(m, t.Root.Children())
	m.Doc = docstringOf(m.Body)
	m.initSpecials()
	return m, nil
}

func spanOf(ps pyparse.Span) Span {
	return Span{
		Line:    ps.Start.Row + 1,
		Col:     ps.Start.Col,
		EndLine: ps.End.Row + 1,
		EndCol:  ps.End.Col,
	}
}

// docstringOf extracts a leading string-literal statement.
func docstringOf(body []Node) string {
	if len(body) == 0 {
		return ""
	}
	es, ok := body[0].(*ExprStmt)
	if !ok {
		return ""
	}
	c, ok := es.Value.(*Const)
	if !ok || c.Kind != ConstStr {
		return ""
	}
	s, _ := c.Value.(string)
	return s
}

func (b *builder) at(pn *pyparse.Node) base { return newBase(spanOf(pn.Span)) }

func (b *builder) push(s ScopedNode) {
	b.stack = append(b.stack, s)
	b.scope = s
}

func (b *builder) pop() {
	b.stack = b.stack[:len(b.stack)-1]
	b.scope = b.stack[len(b.stack)-1]
}

// bindName registers a binding in the current scope, honoring global
// declarations by redirecting to the module table.
func (b *builder) bindName(name string, n Node) {
	if name == "" {
		return
	}
	if f, ok := b.scope.(*FunctionDef); ok && f.declaresGlobal(name) {
		b.module.setLocal(name, n)
		return
	}
	b.scope.setLocal(name, n)
}

// bindInFrame registers a binding in the nearest enclosing frame, skipping
// comprehension scopes. Assignment expressions bind this way.
func (b *builder) bindInFrame(name string, n Node) {
	if name == "" {
		return
	}
	for i := len(b.stack) - 1; i >= 0; i-- {
		switch f := b.stack[i].(type) {
		case *Comp:
			continue
		case *FunctionDef:
			if f.declaresGlobal(name) {
				b.module.setLocal(name, n)
				return
			}
			f.setLocal(name, n)
			return
		default:
			b.stack[i].setLocal(name, n)
			return
		}
	}
}

func own(parent Node, kids ...Node) {
	for _, k := range kids {
		if k != nil {
			k.setParent(parent)
		}
	}
}

func ownAll(parent Node, kids []Node) {
	for _, k := range kids {
		if k != nil {
			k.setParent(parent)
		}
	}
}

// --- statements ---

func (b *builder) stmtsIn(parent Node, pns []*pyparse.Node) []Node {
	var out []Node
	for _, pn := range pns {
		if pn == nil {
			continue
		}
		for _, n := range b.stmt(pn) {
			if n == nil {
				continue
			}
			n.setParent(parent)
			out = append(out, n)
		}
	}
	return out
}

func (b *builder) block(parent Node, pn *pyparse.Node) []Node {
	if pn == nil {
		return nil
	}
	return b.stmtsIn(parent, pn.Children())
}

func (b *builder) stmt(pn *pyparse.Node) []Node {
	ns := b.stmtInner(pn)
	for _, n := range ns {
		if n != nil && n.Scope() == nil {
			n.setScope(b.scope)
		}
	}
	return ns
}

func (b *builder) stmtInner(pn *pyparse.Node) []Node {
	switch pn.Kind {
	case "expression_statement":
		kids := pn.Children()
		if len(kids) == 0 {
			return nil
		}
		return []Node{b.simpleStmt(kids[0])}
	case "if_statement":
		return []Node{b.buildIf(pn)}
	case "while_statement":
		n := &While{base: b.at(pn)}
		n.Test = b.expr(pn.Field("condition"))
		n.Body = b.block(n, pn.Field("body"))
		n.Orelse = b.elseBlock(n, pn.Fields("alternative"))
		own(n, n.Test)
		return []Node{n}
	case "for_statement":
		n := &For{base: b.at(pn), Async: pn.HasToken("async")}
		n.Iter = b.expr(pn.Field("right"))
		n.Target = b.target(pn.Field("left"))
		n.Body = b.block(n, pn.Field("body"))
		n.Orelse = b.elseBlock(n, pn.Fields("alternative"))
		own(n, n.Target, n.Iter)
		return []Node{n}
	case "try_statement":
		return []Node{b.buildTry(pn)}
	case "with_statement":
		return []Node{b.buildWith(pn)}
	case "function_definition":
		return []Node{b.buildFunction(pn, nil)}
	case "class_definition":
		return []Node{b.buildClass(pn, nil)}
	case "decorated_definition":
		return []Node{b.buildDecorated(pn)}
	case "import_statement":
		return []Node{b.buildImport(pn)}
	case "import_from_statement", "future_import_statement":
		return []Node{b.buildImportFrom(pn)}
	case "return_statement":
		n := &Return{base: b.at(pn)}
		if kids := pn.Children(); len(kids) > 0 {
			n.Value = b.expr(kids[0])
		}
		own(n, n.Value)
		return []Node{n}
	case "delete_statement":
		n := &Delete{base: b.at(pn)}
		for _, ch := range pn.Children() {
			if ch.Kind == "expression_list" {
				for _, e := range ch.Children() {
					n.Targets = append(n.Targets, b.expr(e))
				}
				continue
			}
			n.Targets = append(n.Targets, b.expr(ch))
		}
		ownAll(n, n.Targets)
		return []Node{n}
	case "raise_statement":
		n := &Raise{base: b.at(pn)}
		if c := pn.Field("cause"); c != nil {
			n.Cause = b.expr(c)
		}
		for _, ch := range pn.Children() {
			if ch == pn.Field("cause") {
				continue
			}
			n.Exc = b.expr(ch)
			break
		}
		own(n, n.Exc, n.Cause)
		return []Node{n}
	case "assert_statement":
		n := &Assert{base: b.at(pn)}
		kids := pn.Children()
		if len(kids) > 0 {
			n.Test = b.expr(kids[0])
		}
		if len(kids) > 1 {
			n.Msg = b.expr(kids[1])
		}
		own(n, n.Test, n.Msg)
		return []Node{n}
	case "global_statement":
		n := &Global{base: b.at(pn), Names: identNames(pn)}
		if f, ok := b.scope.(*FunctionDef); ok {
			if f.globals == nil {
				f.globals = make(map[string]bool)
			}
			for _, name := range n.Names {
				f.globals[name] = true
			}
		}
		return []Node{n}
	case "nonlocal_statement":
		n := &Nonlocal{base: b.at(pn), Names: identNames(pn)}
		if f, ok := b.scope.(*FunctionDef); ok {
			if f.nonlocals == nil {
				f.nonlocals = make(map[string]bool)
			}
			for _, name := range n.Names {
				f.nonlocals[name] = true
			}
		}
		return []Node{n}
	case "pass_statement":
		return []Node{&Pass{base: b.at(pn)}}
	case "break_statement":
		return []Node{&Break{base: b.at(pn)}}
	case "continue_statement":
		return []Node{&Continue{base: b.at(pn)}}
	case "print_statement":
		// legacy print statements read as calls so inference sees one shape
		return []Node{b.legacyCall(pn, "print", pn.Fields("argument"))}
	case "exec_statement":
		return []Node{b.legacyCall(pn, "exec", pn.Children())}
	}
	return nil
}

// simpleStmt builds the payload of an expression_statement.
func (b *builder) simpleStmt(pn *pyparse.Node) Node {
	switch pn.Kind {
	case "assignment":
		return b.buildAssign(pn)
	case "augmented_assignment":
		n := &AugAssign{base: b.at(pn)}
		if op := pn.Field("operator"); op != nil {
			n.Op = strings.TrimSuffix(op.Text(), "=")
		}
		n.Value = b.expr(pn.Field("right"))
		n.Target = b.target(pn.Field("left"))
		own(n, n.Target, n.Value)
		n.setScope(b.scope)
		return n
	}
	n := &ExprStmt{base: b.at(pn)}
	n.Value = b.expr(pn)
	own(n, n.Value)
	n.setScope(b.scope)
	return n
}

func (b *builder) buildAssign(pn *pyparse.Node) Node {
	n := &Assign{base: b.at(pn)}
	if t := pn.Field("type"); t != nil {
		n.Annotation = b.expr(unwrapType(t))
	}
	// chained targets nest on the right: a = b = v
	targets := []*pyparse.Node{pn.Field("left")}
	right := pn.Field("right")
	for right != nil && right.Kind == "assignment" {
		targets = append(targets, right.Field("left"))
		right = right.Field("right")
	}
	if right != nil {
		n.Value = b.expr(right)
	}
	for _, t := range targets {
		n.Targets = append(n.Targets, b.target(t))
	}
	ownAll(n, n.Targets)
	own(n, n.Annotation, n.Value)
	n.setScope(b.scope)
	return n
}

func (b *builder) buildIf(pn *pyparse.Node) Node {
	n := &If{base: b.at(pn)}
	n.Test = b.expr(pn.Field("condition"))
	n.Body = b.block(n, pn.Field("consequence"))
	n.Orelse = b.elseBlock(n, pn.Fields("alternative"))
	own(n, n.Test)
	return n
}

// elseBlock assembles else and elif alternatives; elif chains nest as If
// statements inside Orelse.
func (b *builder) elseBlock(parent Node, alts []*pyparse.Node) []Node {
	var out []Node
	for _, alt := range alts {
		if alt == nil {
			continue
		}
		switch alt.Kind {
		case "else_clause":
			out = append(out, b.block(parent, alt.Field("body"))...)
		case "elif_clause":
			n := &If{base: b.at(alt)}
			n.Test = b.expr(alt.Field("condition"))
			n.Body = b.block(n, alt.Field("consequence"))
			own(n, n.Test)
			n.setScope(b.scope)
			n.setParent(parent)
			out = append(out, n)
		}
	}
	return out
}

func (b *builder) buildTry(pn *pyparse.Node) Node {
	n := &Try{base: b.at(pn)}
	n.Body = b.block(n, pn.Field("body"))
	for _, ch := range pn.Children() {
		switch ch.Kind {
		case "except_clause", "except_group_clause":
			h := b.buildExcept(ch)
			h.setParent(n)
			n.Handlers = append(n.Handlers, h)
		case "else_clause":
			n.Orelse = append(n.Orelse, b.block(n, ch.Field("body"))...)
		case "finally_clause":
			body := ch.Field("body")
			if body == nil {
				for _, fc := range ch.Children() {
					if fc.Kind == "block" {
						body = fc
						break
					}
				}
			}
			n.Final = append(n.Final, b.block(n, body)...)
		}
	}
	return n
}

func (b *builder) buildExcept(pn *pyparse.Node) *ExceptHandler {
	h := &ExceptHandler{base: b.at(pn)}
	h.setScope(b.scope)
	for _, ch := range pn.Children() {
		switch ch.Kind {
		case "block":
			h.Body = b.stmtsIn(h, ch.Children())
		case "as_pattern":
			kids := ch.Children()
			if len(kids) > 0 {
				h.Type = b.expr(kids[0])
			}
			if alias := ch.Field("alias"); alias != nil {
				h.Name = b.aliasName(alias)
			}
		default:
			if h.Type == nil {
				h.Type = b.expr(ch)
			} else if h.Name == nil && ch.Kind == "identifier" {
				h.Name = b.aliasName(ch)
			}
		}
	}
	own(h, h.Type)
	if h.Name != nil {
		h.Name.setParent(h)
	}
	return h
}

// aliasName builds the binding for an as-alias identifier.
func (b *builder) aliasName(pn *pyparse.Node) *AssignName {
	for pn != nil && pn.Kind != "identifier" {
		kids := pn.Children()
		if len(kids) == 0 {
			break
		}
		pn = kids[0]
	}
	if pn == nil {
		return nil
	}
	an := &AssignName{base: b.at(pn), Name: pn.Text()}
	an.setScope(b.scope)
	b.bindName(an.Name, an)
	return an
}

func (b *builder) buildWith(pn *pyparse.Node) Node {
	n := &With{base: b.at(pn), Async: pn.HasToken("async")}
	clause := pn
	for _, ch := range pn.Children() {
		if ch.Kind == "with_clause" {
			clause = ch
			break
		}
	}
	for _, ch := range clause.Children() {
		if ch.Kind != "with_item" {
			continue
		}
		item := &WithItem{base: b.at(ch)}
		item.setScope(b.scope)
		val := ch.Field("value")
		if val != nil && val.Kind == "as_pattern" {
			kids := val.Children()
			if len(kids) > 0 {
				item.ContextExpr = b.expr(kids[0])
			}
			if alias := val.Field("alias"); alias != nil {
				item.Optional = b.target(firstIdent(alias))
			}
		} else {
			item.ContextExpr = b.expr(val)
			if alias := ch.Field("alias"); alias != nil {
				item.Optional = b.target(alias)
			}
		}
		own(item, item.ContextExpr, item.Optional)
		item.setParent(n)
		n.Items = append(n.Items, item)
	}
	n.Body = b.block(n, pn.Field("body"))
	return n
}

func firstIdent(pn *pyparse.Node) *pyparse.Node {
	if pn == nil || pn.Kind == "identifier" || len(pn.Children()) == 0 {
		return pn
	}
	return pn.Children()[0]
}

func (b *builder) buildDecorated(pn *pyparse.Node) Node {
	var decorators []Node
	for _, ch := range pn.Children() {
		if ch.Kind != "decorator" {
			continue
		}
		kids := ch.Children()
		if len(kids) > 0 {
			decorators = append(decorators, b.expr(kids[0]))
		}
	}
	def := pn.Field("definition")
	if def == nil {
		for _, ch := range pn.Children() {
			if ch.Kind == "function_definition" || ch.Kind == "class_definition" {
				def = ch
				break
			}
		}
	}
	if def == nil {
		return nil
	}
	if def.Kind == "class_definition" {
		return b.buildClass(def, decorators)
	}
	return b.buildFunction(def, decorators)
}

func (b *builder) buildFunction(pn *pyparse.Node, decorators []Node) Node {
	f := &FunctionDef{
		base:  b.at(pn),
		Name:  fieldText(pn, "name"),
		Async: pn.HasToken("async"),
	}
	f.Decorators = decorators
	ownAll(f, f.Decorators)

	// parameter defaults and annotations resolve in the enclosing scope
	f.Args = b.buildParams(pn.Field("parameters"), f)
	if f.Args != nil {
		f.Args.setParent(f)
	}
	if rt := pn.Field("return_type"); rt != nil {
		f.Returns = b.expr(unwrapType(rt))
		own(f, f.Returns)
	}

	b.bindName(f.Name, f)
	b.push(f)
	b.funcs = append(b.funcs, f)
	f.Body = b.stmtsIn(f, blockChildren(pn.Field("body")))
	b.funcs = b.funcs[:len(b.funcs)-1]
	b.pop()

	f.Doc = docstringOf(f.Body)
	return f
}

func (b *builder) buildClass(pn *pyparse.Node, decorators []Node) Node {
	c := &ClassDef{base: b.at(pn), Name: fieldText(pn, "name")}
	c.Decorators = decorators
	ownAll(c, c.Decorators)

	if sup := pn.Field("superclasses"); sup != nil {
		for _, ch := range sup.Children() {
			if ch.Kind == "keyword_argument" {
				kw := &Keyword{base: b.at(ch), Arg: fieldText(ch, "name")}
				kw.setScope(b.scope)
				kw.Value = b.expr(ch.Field("value"))
				own(kw, kw.Value)
				kw.setParent(c)
				c.Keywords = append(c.Keywords, kw)
				continue
			}
			c.Bases = append(c.Bases, b.expr(ch))
		}
		ownAll(c, c.Bases)
	}

	b.bindName(c.Name, c)
	b.push(c)
	c.Body = b.stmtsIn(c, blockChildren(pn.Field("body")))
	b.pop()

	c.Doc = docstringOf(c.Body)
	return c
}

func blockChildren(pn *pyparse.Node) []*pyparse.Node {
	if pn == nil {
		return nil
	}
	return pn.Children()
}

func (b *builder) buildParams(pn *pyparse.Node, owner ScopedNode) *Arguments {
	ab := newBase(Span{})
	if pn != nil {
		ab = b.at(pn)
	}
	args := &Arguments{base: ab}
	args.setScope(owner)
	if pn == nil {
		return args
	}
	kind := ParamPositional
	for _, ch := range pn.Children() {
		var p *Param
		switch ch.Kind {
		case "identifier":
			p = &Param{base: b.at(ch), Name: ch.Text(), Kind: kind}
		case "typed_parameter":
			p = b.splatParam(firstNamed(ch), kind)
			if p != nil {
				if t := ch.Field("type"); t != nil {
					p.Annotation = b.expr(unwrapType(t))
				}
			}
		case "default_parameter", "typed_default_parameter":
			name := ch.Field("name")
			if name == nil {
				continue
			}
			p = &Param{base: b.at(ch), Name: name.Text(), Kind: kind}
			if t := ch.Field("type"); t != nil {
				p.Annotation = b.expr(unwrapType(t))
			}
			if v := ch.Field("value"); v != nil {
				p.Default = b.expr(v)
			}
		case "list_splat_pattern":
			p = b.splatParam(ch, kind)
			kind = ParamKwOnly
		case "dictionary_splat_pattern":
			p = b.splatParam(ch, kind)
		case "keyword_separator":
			kind = ParamKwOnly
		case "positional_separator":
			// '/' only closes the positional block
		}
		if p == nil {
			continue
		}
		own(p, p.Annotation, p.Default)
		p.setScope(owner)
		p.setParent(args)
		args.Params = append(args.Params, p)
		owner.setLocal(p.Name, p)
	}
	return args
}

// splatParam builds a parameter from a possibly starred pattern node.
func (b *builder) splatParam(pn *pyparse.Node, kind ParamKind) *Param {
	if pn == nil {
		return nil
	}
	switch pn.Kind {
	case "identifier":
		return &Param{base: b.at(pn), Name: pn.Text(), Kind: kind}
	case "list_splat_pattern":
		id := firstIdent(pn)
		if id == nil || id.Kind != "identifier" {
			return nil
		}
		return &Param{base: b.at(pn), Name: id.Text(), Kind: ParamVararg}
	case "dictionary_splat_pattern":
		id := firstIdent(pn)
		if id == nil || id.Kind != "identifier" {
			return nil
		}
		return &Param{base: b.at(pn), Name: id.Text(), Kind: ParamKwarg}
	}
	return nil
}

func firstNamed(pn *pyparse.Node) *pyparse.Node {
	kids := pn.Children()
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

func fieldText(pn *pyparse.Node, field string) string {
	f := pn.Field(field)
	if f == nil {
		return ""
	}
	return f.Text()
}

func unwrapType(pn *pyparse.Node) *pyparse.Node {
	if pn != nil && pn.Kind == "type" && len(pn.Children()) > 0 {
		return pn.Children()[0]
	}
	return pn
}

func identNames(pn *pyparse.Node) []string {
	var out []string
	for _, ch := range pn.Children() {
		if ch.Kind == "identifier" {
			out = append(out, ch.Text())
		}
	}
	return out
}

// legacyCall renders python2-only statements as call statements.
func (b *builder) legacyCall(pn *pyparse.Node, fn string, argNodes []*pyparse.Node) Node {
	call := &Call{base: b.at(pn)}
	call.setScope(b.scope)
	name := &Name{base: b.at(pn), Name: fn}
	name.setScope(b.scope)
	name.setParent(call)
	call.Func = name
	for _, an := range argNodes {
		if an == nil {
			continue
		}
		arg := b.expr(an)
		if arg == nil {
			continue
		}
		arg.setParent(call)
		call.Args = append(call.Args, arg)
	}
	st := &ExprStmt{base: b.at(pn), Value: call}
	st.setScope(b.scope)
	call.setParent(st)
	return st
}

// --- imports ---

func (b *builder) buildImport(pn *pyparse.Node) Node {
	n := &Import{base: b.at(pn)}
	for _, ch := range pn.Children() {
		switch ch.Kind {
		case "dotted_name":
			n.Names = append(n.Names, ImportAlias{Name: ch.Text()})
		case "aliased_import":
			n.Names = append(n.Names, ImportAlias{
				Name:   fieldText(ch, "name"),
				AsName: fieldText(ch, "alias"),
			})
		}
	}
	n.setScope(b.scope)
	for _, a := range n.Names {
		b.bindName(a.BoundName(), n)
	}
	return n
}

func (b *builder) buildImportFrom(pn *pyparse.Node) Node {
	n := &ImportFrom{base: b.at(pn)}
	if pn.Kind == "future_import_statement" {
		n.Module = "__future__"
	}
	if mod := pn.Field("module_name"); mod != nil {
		switch mod.Kind {
		case "dotted_name":
			n.Module = mod.Text()
		case "relative_import":
			for _, ch := range mod.Children() {
				switch ch.Kind {
				case "import_prefix":
					n.Level = strings.Count(ch.Text(), ".")
				case "dotted_name":
					n.Module = ch.Text()
				}
			}
			if n.Level == 0 {
				n.Level = strings.Count(mod.Text(), ".") - strings.Count(n.Module, ".")
			}
		}
	}
	names := pn.Fields("name")
	if len(names) == 0 {
		for _, ch := range pn.Children() {
			if ch.Kind == "dotted_name" || ch.Kind == "aliased_import" {
				if ch == pn.Field("module_name") {
					continue
				}
				names = append(names, ch)
			}
		}
	}
	for _, ch := range pn.Children() {
		if ch.Kind == "wildcard_import" {
			n.Wildcard = true
		}
	}
	for _, nm := range names {
		if nm == nil {
			continue
		}
		switch nm.Kind {
		case "dotted_name", "identifier":
			n.Names = append(n.Names, ImportAlias{Name: nm.Text()})
		case "aliased_import":
			n.Names = append(n.Names, ImportAlias{
				Name:   fieldText(nm, "name"),
				AsName: fieldText(nm, "alias"),
			})
		}
	}
	n.setScope(b.scope)
	for _, a := range n.Names {
		b.bindName(a.BoundName(), n)
	}
	return n
}

// --- targets ---

// target builds an expression in binding position: identifiers become
// AssignName and register in scope, attribute writes become AssignAttr and
// feed instance-attribute tables.
func (b *builder) target(pn *pyparse.Node) Node {
	if pn == nil {
		return nil
	}
	switch pn.Kind {
	case "identifier":
		an := &AssignName{base: b.at(pn), Name: pn.Text()}
		an.setScope(b.scope)
		b.bindName(an.Name, an)
		return an
	case "attribute":
		aa := &AssignAttr{base: b.at(pn), Attr: fieldText(pn, "attribute")}
		aa.setScope(b.scope)
		aa.Value = b.expr(pn.Field("object"))
		own(aa, aa.Value)
		b.recordInstanceAttr(aa)
		return aa
	case "tuple_pattern", "pattern_list", "expression_list", "tuple":
		t := &Tuple{base: b.at(pn)}
		t.setScope(b.scope)
		for _, ch := range pn.Children() {
			t.Elts = append(t.Elts, b.target(ch))
		}
		ownAll(t, t.Elts)
		return t
	case "list_pattern", "list":
		l := &List{base: b.at(pn)}
		l.setScope(b.scope)
		for _, ch := range pn.Children() {
			l.Elts = append(l.Elts, b.target(ch))
		}
		ownAll(l, l.Elts)
		return l
	case "list_splat_pattern", "list_splat":
		s := &Starred{base: b.at(pn)}
		s.setScope(b.scope)
		s.Value = b.target(firstNamed(pn))
		own(s, s.Value)
		return s
	case "parenthesized_expression":
		return b.target(firstNamed(pn))
	case "subscript":
		// subscript targets bind no name
		return b.expr(pn)
	}
	return b.expr(pn)
}

// recordInstanceAttr files self.x-style writes on the owning class. The
// receiver is recognized by the first parameter name of the innermost
// enclosing method.
func (b *builder) recordInstanceAttr(aa *AssignAttr) {
	recv, ok := aa.Value.(*Name)
	if !ok {
		return
	}
	for i := len(b.stack) - 1; i >= 1; i-- {
		if _, isComp := b.stack[i].(*Comp); isComp {
			continue
		}
		f, isFunc := b.stack[i].(*FunctionDef)
		if !isFunc {
			return
		}
		cls, isMethod := b.stack[i-1].(*ClassDef)
		if !isMethod {
			return
		}
		pos := f.Args.Positional()
		if len(pos) == 0 || pos[0].Name != recv.Name {
			return
		}
		if f.methodKind() == "staticmethod" {
			return
		}
		cls.setInstanceAttr(aa.Attr, aa)
		return
	}
}

// --- expressions ---

func (b *builder) expr(pn *pyparse.Node) Node {
	if pn == nil {
		return nil
	}
	n := b.exprInner(pn)
	if n != nil && n.Scope() == nil {
		n.setScope(b.scope)
	}
	return n
}

func (b *builder) exprInner(pn *pyparse.Node) Node {
	switch pn.Kind {
	case "identifier":
		return &Name{base: b.at(pn), Name: pn.Text()}
	case "integer":
		return b.intConst(pn)
	case "float":
		return b.floatConst(pn)
	case "string":
		return b.buildString(pn)
	case "concatenated_string":
		return b.buildConcatString(pn)
	case "true":
		return &Const{base: b.at(pn), Kind: ConstBool, Value: true}
	case "false":
		return &Const{base: b.at(pn), Kind: ConstBool, Value: false}
	case "none":
		return &Const{base: b.at(pn), Kind: ConstNone}
	case "ellipsis":
		return &Const{base: b.at(pn), Kind: ConstEllipsis}
	case "binary_operator":
		n := &BinOp{base: b.at(pn)}
		n.Left = b.expr(pn.Field("left"))
		n.Right = b.expr(pn.Field("right"))
		if op := pn.Field("operator"); op != nil {
			n.Op = op.Text()
		}
		own(n, n.Left, n.Right)
		return n
	case "boolean_operator":
		return b.buildBoolOp(pn)
	case "not_operator":
		n := &UnaryOp{base: b.at(pn), Op: "not"}
		n.Operand = b.expr(pn.Field("argument"))
		own(n, n.Operand)
		return n
	case "unary_operator":
		n := &UnaryOp{base: b.at(pn)}
		if op := pn.Field("operator"); op != nil {
			n.Op = op.Text()
		}
		n.Operand = b.expr(pn.Field("argument"))
		own(n, n.Operand)
		return n
	case "comparison_operator":
		return b.buildCompare(pn)
	case "lambda":
		return b.buildLambda(pn)
	case "attribute":
		n := &Attribute{base: b.at(pn), Attr: fieldText(pn, "attribute")}
		n.Value = b.expr(pn.Field("object"))
		own(n, n.Value)
		return n
	case "subscript":
		return b.buildSubscript(pn)
	case "slice":
		return b.buildSlice(pn)
	case "call":
		return b.buildCall(pn)
	case "list":
		l := &List{base: b.at(pn)}
		l.Elts = b.exprList(pn.Children())
		ownAll(l, l.Elts)
		return l
	case "tuple", "expression_list":
		t := &Tuple{base: b.at(pn)}
		t.Elts = b.exprList(pn.Children())
		ownAll(t, t.Elts)
		return t
	case "set":
		s := &Set{base: b.at(pn)}
		s.Elts = b.exprList(pn.Children())
		ownAll(s, s.Elts)
		return s
	case "dictionary":
		return b.buildDict(pn)
	case "list_comprehension":
		return b.buildComp(pn, ListCompKind)
	case "set_comprehension":
		return b.buildComp(pn, SetCompKind)
	case "dictionary_comprehension":
		return b.buildComp(pn, DictCompKind)
	case "generator_expression":
		return b.buildComp(pn, GeneratorExpKind)
	case "parenthesized_expression":
		return b.expr(firstNamed(pn))
	case "conditional_expression":
		kids := pn.Children()
		n := &IfExp{base: b.at(pn)}
		if len(kids) > 0 {
			n.Body = b.expr(kids[0])
		}
		if len(kids) > 1 {
			n.Test = b.expr(kids[1])
		}
		if len(kids) > 2 {
			n.Orelse = b.expr(kids[2])
		}
		own(n, n.Test, n.Body, n.Orelse)
		return n
	case "named_expression":
		return b.buildNamedExpr(pn)
	case "await":
		n := &Await{base: b.at(pn)}
		n.Value = b.expr(firstNamed(pn))
		own(n, n.Value)
		return n
	case "yield":
		n := &Yield{base: b.at(pn), From: pn.HasToken("from")}
		if kids := pn.Children(); len(kids) > 0 {
			n.Value = b.expr(kids[0])
		}
		own(n, n.Value)
		if len(b.funcs) > 0 {
			b.funcs[len(b.funcs)-1].generator = true
		}
		return n
	case "list_splat", "dictionary_splat":
		n := &Starred{base: b.at(pn)}
		n.Value = b.expr(firstNamed(pn))
		own(n, n.Value)
		return n
	case "as_pattern":
		return b.expr(firstNamed(pn))
	case "type":
		return b.expr(unwrapType(pn))
	}
	// unknown constructs read as unresolvable names
	return &Name{base: b.at(pn)}
}

func (b *builder) exprList(pns []*pyparse.Node) []Node {
	var out []Node
	for _, pn := range pns {
		if e := b.expr(pn); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (b *builder) buildBoolOp(pn *pyparse.Node) Node {
	op := "and"
	if o := pn.Field("operator"); o != nil {
		op = o.Text()
	}
	n := &BoolOp{base: b.at(pn), Op: op}
	left := b.expr(pn.Field("left"))
	right := b.expr(pn.Field("right"))
	// flatten same-operator chains
	if lb, ok := left.(*BoolOp); ok && lb.Op == op {
		n.Values = append(n.Values, lb.Values...)
	} else if left != nil {
		n.Values = append(n.Values, left)
	}
	if right != nil {
		n.Values = append(n.Values, right)
	}
	ownAll(n, n.Values)
	return n
}

func (b *builder) buildCompare(pn *pyparse.Node) Node {
	n := &Compare{base: b.at(pn)}
	operands := b.exprList(pn.Children())
	if len(operands) == 0 {
		return &Name{base: b.at(pn)}
	}
	n.Left = operands[0]
	n.Comparators = operands[1:]
	var ops []string
	for _, o := range pn.Fields("operators") {
		if o == nil {
			continue
		}
		t := o.Text()
		// "is not" and "not in" arrive as two tokens
		if len(ops) > 0 && (ops[len(ops)-1] == "is" && t == "not" || t == "in" && ops[len(ops)-1] == "not") {
			ops[len(ops)-1] = ops[len(ops)-1] + " " + t
			continue
		}
		ops = append(ops, t)
	}
	n.Ops = ops
	own(n, n.Left)
	ownAll(n, n.Comparators)
	return n
}

func (b *builder) buildLambda(pn *pyparse.Node) Node {
	l := &Lambda{base: b.at(pn)}
	l.setScope(b.scope)
	l.Args = b.buildParams(pn.Field("parameters"), l)
	l.Args.setParent(l)
	b.push(l)
	l.Body = b.expr(pn.Field("body"))
	b.pop()
	own(l, l.Body)
	return l
}

func (b *builder) buildSubscript(pn *pyparse.Node) Node {
	n := &Subscript{base: b.at(pn)}
	n.Value = b.expr(pn.Field("value"))
	subs := pn.Fields("subscript")
	switch len(subs) {
	case 0:
	case 1:
		n.Index = b.expr(subs[0])
	default:
		t := &Tuple{base: b.at(pn)}
		t.setScope(b.scope)
		for _, s := range subs {
			t.Elts = append(t.Elts, b.expr(s))
		}
		ownAll(t, t.Elts)
		n.Index = t
	}
	own(n, n.Value, n.Index)
	return n
}

// buildSlice fills slice positions in order of appearance. The named
// children alone cannot distinguish a missing lower bound from a missing
// upper one beyond the first position; sliced containers are opaque to
// inference either way.
func (b *builder) buildSlice(pn *pyparse.Node) Node {
	n := &Slice{base: b.at(pn)}
	kids := pn.Children()
	exprs := make([]Node, 0, 3)
	for _, k := range kids {
		exprs = append(exprs, b.expr(k))
	}
	atStart := len(kids) > 0 && kids[0].Span.StartByte == pn.Span.StartByte
	switch {
	case len(exprs) >= 3:
		n.Lower, n.Upper, n.Step = exprs[0], exprs[1], exprs[2]
	case len(exprs) == 2 && atStart:
		n.Lower, n.Upper = exprs[0], exprs[1]
	case len(exprs) == 2:
		n.Upper, n.Step = exprs[0], exprs[1]
	case len(exprs) == 1 && atStart:
		n.Lower = exprs[0]
	case len(exprs) == 1:
		n.Upper = exprs[0]
	}
	own(n, n.Lower, n.Upper, n.Step)
	return n
}

func (b *builder) buildCall(pn *pyparse.Node) Node {
	n := &Call{base: b.at(pn)}
	n.Func = b.expr(pn.Field("function"))
	args := pn.Field("arguments")
	switch {
	case args == nil:
	case args.Kind == "argument_list":
		for _, ch := range args.Children() {
			switch ch.Kind {
			case "keyword_argument":
				kw := &Keyword{base: b.at(ch), Arg: fieldText(ch, "name")}
				kw.setScope(b.scope)
				kw.Value = b.expr(ch.Field("value"))
				own(kw, kw.Value)
				kw.setParent(n)
				n.Keywords = append(n.Keywords, kw)
			case "dictionary_splat":
				kw := &Keyword{base: b.at(ch)}
				kw.setScope(b.scope)
				kw.Value = b.expr(firstNamed(ch))
				own(kw, kw.Value)
				kw.setParent(n)
				n.Keywords = append(n.Keywords, kw)
			default:
				if e := b.expr(ch); e != nil {
					n.Args = append(n.Args, e)
				}
			}
		}
	default:
		// f(x for x in xs) passes the generator directly
		if e := b.expr(args); e != nil {
			n.Args = append(n.Args, e)
		}
	}
	own(n, n.Func)
	ownAll(n, n.Args)
	return n
}

func (b *builder) buildDict(pn *pyparse.Node) Node {
	d := &Dict{base: b.at(pn)}
	for _, ch := range pn.Children() {
		switch ch.Kind {
		case "pair":
			d.Keys = append(d.Keys, b.expr(ch.Field("key")))
			d.Values = append(d.Values, b.expr(ch.Field("value")))
		case "dictionary_splat":
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, b.expr(firstNamed(ch)))
		}
	}
	ownAll(d, d.Keys)
	ownAll(d, d.Values)
	return d
}

func (b *builder) buildComp(pn *pyparse.Node, kind CompKind) Node {
	c := &Comp{base: b.at(pn), Kind: kind}
	c.setScope(b.scope)

	var clausePNs []*pyparse.Node
	for _, ch := range pn.Children() {
		if ch.Kind == "for_in_clause" || ch.Kind == "if_clause" {
			clausePNs = append(clausePNs, ch)
		}
	}

	// the first iterable resolves in the enclosing scope
	var firstIter Node
	for _, ch := range clausePNs {
		if ch.Kind == "for_in_clause" {
			firstIter = b.expr(ch.Field("right"))
			break
		}
	}

	b.push(c)
	first := true
	var last *CompClause
	for _, ch := range clausePNs {
		switch ch.Kind {
		case "for_in_clause":
			cl := &CompClause{base: b.at(ch), Async: ch.HasToken("async")}
			cl.setScope(c)
			if first {
				cl.Iter = firstIter
				first = false
			} else {
				cl.Iter = b.expr(ch.Field("right"))
			}
			cl.Target = b.target(ch.Field("left"))
			own(cl, cl.Target, cl.Iter)
			cl.setParent(c)
			c.Clauses = append(c.Clauses, cl)
			last = cl
		case "if_clause":
			if last == nil {
				continue
			}
			if e := b.expr(firstNamed(ch)); e != nil {
				e.setParent(last)
				last.Ifs = append(last.Ifs, e)
			}
		}
	}
	if kind == DictCompKind {
		if body := pn.Field("body"); body != nil && body.Kind == "pair" {
			c.Key = b.expr(body.Field("key"))
			c.Value = b.expr(body.Field("value"))
		}
	} else {
		c.Elt = b.expr(pn.Field("body"))
	}
	b.pop()

	own(c, c.Elt, c.Key, c.Value)
	return c
}

// buildNamedExpr renders a walrus as an assignment node that reads as its
// value; the binding registers in the nearest frame, not the comprehension.
func (b *builder) buildNamedExpr(pn *pyparse.Node) Node {
	n := &Assign{base: b.at(pn)}
	n.setScope(b.scope)
	n.Value = b.expr(pn.Field("value"))
	if id := pn.Field("name"); id != nil && id.Kind == "identifier" {
		an := &AssignName{base: b.at(id), Name: id.Text()}
		an.setScope(b.scope)
		b.bindInFrame(an.Name, an)
		n.Targets = append(n.Targets, an)
	}
	ownAll(n, n.Targets)
	own(n, n.Value)
	return n
}

// --- literals ---

func (b *builder) intConst(pn *pyparse.Node) Node {
	text := strings.ReplaceAll(pn.Text(), "_", "")
	text = strings.TrimRight(text, "lL")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		f, err := strconv.ParseFloat(text[:len(text)-1], 64)
		if err != nil {
			return &Const{base: b.at(pn), Kind: ConstFloat, Value: 0.0}
		}
		return &Const{base: b.at(pn), Kind: ConstFloat, Value: f}
	}
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		// overflowing integers stay typed, payload saturates
		if u, uerr := strconv.ParseUint(text, 0, 64); uerr == nil {
			return &Const{base: b.at(pn), Kind: ConstInt, Value: int64(u)}
		}
		return &Const{base: b.at(pn), Kind: ConstInt, Value: int64(0)}
	}
	return &Const{base: b.at(pn), Kind: ConstInt, Value: v}
}

func (b *builder) floatConst(pn *pyparse.Node) Node {
	text := strings.ReplaceAll(pn.Text(), "_", "")
	text = strings.TrimRight(text, "jJ")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		v = 0
	}
	return &Const{base: b.at(pn), Kind: ConstFloat, Value: v}
}

// stringShape describes a string literal's prefix and quoting.
type stringShape struct {
	raw    bool
	bytes  bool
	fstr   bool
	prefix int // prefix length in bytes
	quote  int // quote run length, 1 or 3
}

func shapeOf(text string) stringShape {
	var s stringShape
	i := 0
	for i < len(text) {
		switch text[i] {
		case 'r', 'R':
			s.raw = true
		case 'b', 'B':
			s.bytes = true
		case 'f', 'F':
			s.fstr = true
		case 'u', 'U':
		default:
			s.prefix = i
			if strings.HasPrefix(text[i:], `"""`) || strings.HasPrefix(text[i:], "'''") {
				s.quote = 3
			} else {
				s.quote = 1
			}
			return s
		}
		i++
	}
	s.prefix = i
	s.quote = 1
	return s
}

func (b *builder) buildString(pn *pyparse.Node) Node {
	text := pn.Text()
	shape := shapeOf(text)

	var interps []*pyparse.Node
	for _, ch := range pn.Children() {
		if ch.Kind == "interpolation" {
			interps = append(interps, ch)
		}
	}

	if shape.fstr && len(interps) > 0 {
		return b.buildFString(pn, shape, interps)
	}

	start := shape.prefix + shape.quote
	end := len(text) - shape.quote
	if end < start {
		end = start
	}
	content := text[start:end]
	if !shape.raw {
		content = decodeEscapes(content)
	}
	kind := ConstStr
	if shape.bytes {
		kind = ConstBytes
	}
	return &Const{base: b.at(pn), Kind: kind, Value: content}
}

// buildFString splits an interpolated string into literal chunks and
// embedded expressions.
func (b *builder) buildFString(pn *pyparse.Node, shape stringShape, interps []*pyparse.Node) Node {
	j := &JoinedStr{base: b.at(pn)}
	j.setScope(b.scope)
	text := pn.Text()
	start := pn.Span.StartByte
	cursor := shape.prefix + shape.quote
	closing := len(text) - shape.quote

	addLiteral := func(from, to int) {
		if to <= from || from < 0 || to > len(text) {
			return
		}
		chunk := text[from:to]
		if !shape.raw {
			chunk = decodeEscapes(chunk)
		}
		if chunk == "" {
			return
		}
		c := &Const{base: newBase(spanOf(pn.Span)), Kind: ConstStr, Value: chunk}
		c.setScope(b.scope)
		c.setParent(j)
		j.Parts = append(j.Parts, c)
	}

	for _, in := range interps {
		from := in.Span.StartByte - start
		to := in.Span.EndByte - start
		addLiteral(cursor, from)
		if kids := in.Children(); len(kids) > 0 {
			if e := b.expr(kids[0]); e != nil {
				e.setParent(j)
				j.Parts = append(j.Parts, e)
			}
		}
		cursor = to
	}
	addLiteral(cursor, closing)
	return j
}

func (b *builder) buildConcatString(pn *pyparse.Node) Node {
	var parts []Node
	for _, ch := range pn.Children() {
		if ch.Kind != "string" {
			continue
		}
		parts = append(parts, b.buildString(ch))
	}
	if len(parts) == 0 {
		return &Const{base: b.at(pn), Kind: ConstStr, Value: ""}
	}

	// adjacent plain literals merge into one constant
	allConst := true
	kind := ConstStr
	var sb strings.Builder
	for _, p := range parts {
		c, ok := p.(*Const)
		if !ok || (c.Kind != ConstStr && c.Kind != ConstBytes) {
			allConst = false
			break
		}
		if c.Kind == ConstBytes {
			kind = ConstBytes
		}
		s, _ := c.Value.(string)
		sb.WriteString(s)
	}
	if allConst {
		return &Const{base: b.at(pn), Kind: kind, Value: sb.String()}
	}
	j := &JoinedStr{base: b.at(pn)}
	j.setScope(b.scope)
	for _, p := range parts {
		if js, ok := p.(*JoinedStr); ok {
			for _, part := range js.Parts {
				part.setParent(j)
				j.Parts = append(j.Parts, part)
			}
			continue
		}
		p.setParent(j)
		j.Parts = append(j.Parts, p)
	}
	return j
}

// decodeEscapes resolves backslash escapes the way source strings do.
// Unknown escapes keep the backslash.
func decodeEscapes(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			out.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case '\\':
			out.WriteByte('\\')
		case '\'':
			out.WriteByte('\'')
		case '"':
			out.WriteByte('"')
		case 'a':
			out.WriteByte('\a')
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case 'v':
			out.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			if v, err := strconv.ParseUint(s[i:j], 8, 32); err == nil {
				out.WriteRune(rune(v))
			}
			i = j - 1
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 32); err == nil {
					out.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			out.WriteString(`\x`)
		case 'u':
			if i+4 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					out.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			out.WriteString(`\u`)
		case 'U':
			if i+8 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+9], 16, 32); err == nil {
					out.WriteRune(rune(v))
					i += 8
					continue
				}
			}
			out.WriteString(`\U`)
		case '\n':
			// line continuation
		default:
			out.WriteByte('\\')
			out.WriteByte(s[i])
		}
	}
	return out.String()
}
