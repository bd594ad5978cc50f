package taproot

import "fmt"

// inferAssigned resolves what a binding occurrence is worth: the node is an
// assignment or attribute target, and the answer depends on the statement
// shape around it.
func inferAssigned(target Node, ctx *Context) ([]Value, error) {
	switch p := target.Parent().(type) {
	case *Assign:
		if p.Value == nil {
			// bare annotation binds a name without a value
			return []Value{Uninferable}, nil
		}
		return inferAll(p.Value, ctx)
	case *AugAssign:
		// the statically unknown result of an in-place operator
		return []Value{Uninferable}, nil
	case *Tuple:
		return unpackAssigned(target, p, p.Elts, ctx)
	case *List:
		return unpackAssigned(target, p, p.Elts, ctx)
	case *For:
		return iteratedValues(p.Iter, ctx)
	case *CompClause:
		return iteratedValues(p.Iter, ctx)
	case *WithItem:
		return enterValues(p, ctx)
	case *ExceptHandler:
		return handlerInstances(p, ctx)
	}
	return []Value{Uninferable}, nil
}

// unpackAssigned resolves a target nested in a sequence-unpacking pattern to
// the source elements at the target's position.
func unpackAssigned(target, pattern Node, elts []Node, ctx *Context) ([]Value, error) {
	idx := int64(-1)
	for i, e := range elts {
		if e == target {
			idx = int64(i)
			break
		}
		if _, ok := e.(*Starred); ok {
			// a star before the target shifts positions unpredictably
			return []Value{Uninferable}, nil
		}
	}
	if idx < 0 {
		return []Value{Uninferable}, nil
	}
	sources, err := patternSources(pattern, ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return []Value{Uninferable}, nil
	}
	var out []Value
	for _, s := range sources {
		out = append(out, elementAt(s, idx, ctx)...)
	}
	return dedupValues(orUninferable(out, true)), nil
}

// patternSources infers the values an unpacking pattern draws from.
func patternSources(pattern Node, ctx *Context) ([]Value, error) {
	switch pp := pattern.Parent().(type) {
	case *Assign:
		if pp.Value == nil {
			return nil, nil
		}
		return inferAll(pp.Value, ctx)
	case *For:
		return iteratedValues(pp.Iter, ctx)
	case *CompClause:
		return iteratedValues(pp.Iter, ctx)
	}
	return nil, nil
}

func elementAt(v Value, idx int64, ctx *Context) []Value {
	switch cv := v.(type) {
	case *List:
		return indexInto(cv.Elts, idx, ctx)
	case *Tuple:
		return indexInto(cv.Elts, idx, ctx)
	}
	return []Value{Uninferable}
}

// iteratedValues infers the element values produced by iterating an
// expression: the union over each literal element, keys for dicts.
func iteratedValues(iterable Node, ctx *Context) ([]Value, error) {
	vals, err := inferAll(iterable, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, v := range vals {
		switch cv := v.(type) {
		case *List:
			out = append(out, inferEach(cv.Elts, ctx)...)
		case *Tuple:
			out = append(out, inferEach(cv.Elts, ctx)...)
		case *Set:
			out = append(out, inferEach(cv.Elts, ctx)...)
		case *Dict:
			out = append(out, inferEach(cv.Keys, ctx)...)
		default:
			out = append(out, Uninferable)
		}
	}
	return dedupValues(orUninferable(out, len(vals) > 0)), nil
}

// inferEach unions the inferences of literal elements. Splatted elements
// contribute Uninferable, nil keys (dict ** entries) are skipped.
func inferEach(elts []Node, ctx *Context) []Value {
	var out []Value
	for _, e := range elts {
		if e == nil {
			continue
		}
		if _, ok := e.(*Starred); ok {
			out = append(out, Uninferable)
			continue
		}
		vs, err := inferAll(e, ctx)
		if err != nil {
			out = append(out, Uninferable)
			continue
		}
		out = append(out, vs...)
	}
	return out
}

// enterValues resolves a with-target through the context manager protocol:
// the result of calling __enter__ on the managed value.
func enterValues(item *WithItem, ctx *Context) ([]Value, error) {
	mgrs, err := inferAll(item.ContextExpr, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, m := range mgrs {
		if IsUninferable(m) {
			out = append(out, Uninferable)
			continue
		}
		enters, aerr := m.Attr("__enter__", ctx)
		if aerr != nil {
			out = append(out, Uninferable)
			continue
		}
		for _, e := range enters {
			fn, ok := e.(Callable)
			if !ok {
				continue
			}
			vs, cerr := fn.CallResult(nil, ctx)
			if cerr != nil {
				continue
			}
			out = append(out, vs...)
		}
	}
	return dedupValues(orUninferable(out, len(mgrs) > 0)), nil
}

// handlerInstances resolves an exception-handler binding: an instance of
// each class the handler catches.
func handlerInstances(h *ExceptHandler, ctx *Context) ([]Value, error) {
	if h.Type == nil {
		return []Value{Uninferable}, nil
	}
	classes, err := inferAll(h.Type, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, c := range classes {
		switch cv := c.(type) {
		case *ClassDef:
			out = append(out, &Instance{Class: cv})
		case *Tuple:
			for _, v := range inferEach(cv.Elts, ctx) {
				if cls, ok := v.(*ClassDef); ok {
					out = append(out, &Instance{Class: cls})
				} else {
					out = append(out, Uninferable)
				}
			}
		default:
			out = append(out, Uninferable)
		}
	}
	return dedupValues(orUninferable(out, len(classes) > 0)), nil
}

// --- parameters ---

// inferParam resolves a parameter: the bound receiver for methods, then
// call-site bindings, then the declared default with Uninferable appended
// since the actual argument is unknowable.
func inferParam(p *Param, ctx *Context) ([]Value, error) {
	args, _ := p.Parent().(*Arguments)
	if args == nil {
		return []Value{Uninferable}, nil
	}
	var fnDef *FunctionDef
	var lam *Lambda
	switch f := args.Parent().(type) {
	case *FunctionDef:
		fnDef = f
	case *Lambda:
		lam = f
	}

	positional := args.Positional()
	isFirst := len(positional) > 0 && positional[0] == p

	if isFirst && fnDef != nil && fnDef.IsMethod() && fnDef.methodKind() != "staticmethod" {
		cls, _ := fnDef.Parent().(*ClassDef)
		if inst, ok := ctx.bound.(*Instance); ok {
			cls = inst.Class
		}
		if cls != nil {
			if fnDef.methodKind() == "classmethod" {
				return []Value{cls}, nil
			}
			if ctx.bound != nil {
				return []Value{ctx.bound}, nil
			}
			return []Value{&Instance{Class: cls}}, nil
		}
	}
	if isFirst && lam != nil && ctx.bound != nil {
		return []Value{ctx.bound}, nil
	}

	if ctx.call != nil {
		if vals, ok := callBinding(p, args, ctx); ok {
			return vals, nil
		}
	}

	switch p.Kind {
	case ParamVararg:
		return []Value{synthSequence(p, nil)}, nil
	case ParamKwarg:
		return []Value{synthMapping(p, nil, nil)}, nil
	}

	if p.Default != nil {
		vals, err := inferAll(p.Default, ctx.fork())
		if err == nil && len(vals) > 0 {
			return append(vals, Uninferable), nil
		}
	}
	return []Value{Uninferable}, nil
}

// callBinding resolves p against call-site bindings, reporting false when
// the site leaves it unbound.
func callBinding(p *Param, args *Arguments, ctx *Context) ([]Value, bool) {
	call := ctx.call
	for _, a := range call.Args {
		if _, ok := a.(*Starred); ok {
			return []Value{Uninferable}, true
		}
	}
	boundOffset := 0
	if ctx.bound != nil {
		boundOffset = 1
	}
	positional := args.Positional()

	switch p.Kind {
	case ParamPositional:
		for i, q := range positional {
			if q != p {
				continue
			}
			if ai := i - boundOffset; ai >= 0 && ai < len(call.Args) {
				return inferCallArg(call.Args[ai], ctx), true
			}
			break
		}
	case ParamVararg:
		start := len(positional) - boundOffset
		if start < 0 {
			start = 0
		}
		if start > len(call.Args) {
			start = len(call.Args)
		}
		return []Value{synthSequence(p, call.Args[start:])}, true
	case ParamKwarg:
		var keys, vals []Node
		for _, kw := range call.Keywords {
			if kw.Arg == "" {
				return []Value{Uninferable}, true
			}
			if q := args.Find(kw.Arg); q != nil && q != p {
				continue
			}
			keys = append(keys, synthConst(p, ConstStr, kw.Arg))
			vals = append(vals, kw.Value)
		}
		return []Value{synthMapping(p, keys, vals)}, true
	}

	if p.Kind == ParamPositional || p.Kind == ParamKwOnly {
		for _, kw := range call.Keywords {
			if kw.Arg == p.Name {
				return inferCallArg(kw.Value, ctx), true
			}
		}
	}
	return nil, false
}

// inferCallArg evaluates a call-site argument in its own scope, outside the
// callee's bindings.
func inferCallArg(arg Node, ctx *Context) []Value {
	vals, err := inferAll(arg, ctx.fork())
	if err != nil {
		return []Value{Uninferable}
	}
	return orUninferable(vals, true)
}

func synthSequence(anchor Node, elts []Node) *Tuple {
	t := &Tuple{base: newBase(Span{}), Elts: elts}
	t.setParent(anchor)
	if s := anchor.Scope(); s != nil {
		t.setScope(s)
	}
	return t
}

func synthMapping(anchor Node, keys, vals []Node) *Dict {
	d := &Dict{base: newBase(Span{}), Keys: keys, Values: vals}
	d.setParent(anchor)
	if s := anchor.Scope(); s != nil {
		d.setScope(s)
	}
	return d
}

// --- imports ---

func inferImport(n *Import, ctx *Context) ([]Value, error) {
	name := ctx.lookupName
	if name == "" {
		if len(n.Names) == 0 {
			return nil, &InferenceError{Node: n, Reason: "import binds no names"}
		}
		name = n.Names[0].BoundName()
	}
	mod, err := importModule(n, n.realName(name), 0)
	if err != nil {
		rerr := &InferenceError{Node: n, Reason: fmt.Sprintf("import %s: %v", n.realName(name), err)}
		if ctx.strict {
			return nil, rerr
		}
		return []Value{Uninferable}, nil
	}
	return []Value{mod}, nil
}

func inferImportFrom(n *ImportFrom, ctx *Context) ([]Value, error) {
	name := ctx.lookupName
	if name == "" {
		if len(n.Names) == 0 {
			return nil, &InferenceError{Node: n, Reason: "import binds no names"}
		}
		name = n.Names[0].BoundName()
	}
	mod, err := importModule(n, n.Module, n.Level)
	if err != nil {
		rerr := &InferenceError{Node: n, Reason: fmt.Sprintf("import from %s: %v", n.Module, err)}
		if ctx.strict {
			return nil, rerr
		}
		return []Value{Uninferable}, nil
	}
	vals, err := mod.Attr(n.importedName(name), ctx.fork())
	if err != nil {
		if ctx.strict {
			return nil, err
		}
		return []Value{Uninferable}, nil
	}
	return vals, nil
}

// importModule resolves a dotted name, relative levels included, through the
// session owning origin's tree.
func importModule(origin Node, dotted string, level int) (*Module, error) {
	root := origin.Root()
	if root == nil || root.session == nil {
		return nil, &ImportError{Modname: dotted, Err: errNoSession}
	}
	name := dotted
	if level > 0 {
		var err error
		name, err = root.RelativeName(dotted, level)
		if err != nil {
			return nil, err
		}
	}
	return root.session.BuildModule(name)
}
