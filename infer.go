package taproot

import (
	"iter"
	"math"
	"strings"
)

type inferKey struct {
	node uint64
	sig  string
}

// Infer lazily yields the possible values of n. The consumer may stop early:
// candidates are materialized and cached before the first yield, so early
// termination never corrupts shared state. Unresolvable portions surface as
// Uninferable rather than errors. ctx may be nil.
func Infer(n Node, ctx *Context) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		vals, err := InferAll(n, ctx)
		if err != nil {
			yield(Uninferable)
			return
		}
		for _, v := range vals {
			if !yield(v) {
				return
			}
		}
	}
}

// InferAll materializes every candidate value of n, deduplicated in
// discovery order. Callers must not mutate the returned slice; it may be
// shared with the cache. ctx may be nil.
func InferAll(n Node, ctx *Context) ([]Value, error) {
	if ctx == nil {
		ctx = contextFor(n)
	}
	return inferAll(n, ctx)
}

// InferAllStrict is InferAll with resolution failures propagated as errors
// instead of degraded to Uninferable.
func InferAllStrict(n Node) ([]Value, error) {
	ctx := contextFor(n)
	ctx.strict = true
	return inferAll(n, ctx)
}

// contextFor builds a context carrying the limits of the session that owns
// n's tree, or defaults for detached nodes.
func contextFor(n Node) *Context {
	if n != nil {
		if sess := sessionOf(n); sess != nil {
			return sess.newContext()
		}
	}
	return NewContext()
}

func sessionOf(n Node) *Session {
	if root := n.Root(); root != nil {
		return root.session
	}
	return nil
}

// inferAll is the engine core: budget gate, cache lookup keyed by
// (node identity, context signature), cycle guard, then kind dispatch.
// A guard hit contributes no values, which is what keeps mutual recursion
// finite; budget exhaustion degrades to Uninferable.
func inferAll(n Node, ctx *Context) ([]Value, error) {
	if n == nil {
		return nil, &InferenceError{Reason: "no node"}
	}
	ctx = orNew(ctx)
	if ctx.depthExceeded() || !ctx.budget() {
		return []Value{Uninferable}, nil
	}
	id := n.nodeID()
	sess := sessionOf(n)
	useCache := sess != nil && !ctx.strict
	var key inferKey
	if useCache {
		key = inferKey{node: id, sig: ctx.Signature()}
		if vals, ok := sess.inferCache.Get(key); ok {
			return vals, nil
		}
	}
	if ctx.pushed(id, ctx.lookupName) {
		return nil, nil
	}
	vals, err := dispatch(n, ctx.push(id, ctx.lookupName))
	if err != nil {
		return nil, err
	}
	if useCache {
		sess.inferCache.Set(key, vals)
	}
	return vals, nil
}

func dispatch(n Node, ctx *Context) ([]Value, error) {
	switch v := n.(type) {
	case *Const:
		return []Value{v}, nil
	case *List:
		return []Value{v}, nil
	case *Tuple:
		return []Value{v}, nil
	case *Set:
		return []Value{v}, nil
	case *Dict:
		return []Value{v}, nil
	case *FunctionDef:
		return []Value{v}, nil
	case *Lambda:
		return []Value{v}, nil
	case *ClassDef:
		return []Value{v}, nil
	case *Module:
		return []Value{v}, nil
	case *Name:
		return inferName(v, ctx)
	case *Assign:
		// assignment expressions read as their value
		if v.Value == nil {
			return []Value{Uninferable}, nil
		}
		return inferAll(v.Value, ctx)
	case *AssignName:
		return inferAssigned(v, ctx)
	case *AssignAttr:
		return inferAssigned(v, ctx)
	case *Attribute:
		return inferAttribute(v, ctx)
	case *Call:
		return inferCall(v, ctx)
	case *BinOp:
		return foldBinOp(v, ctx)
	case *BoolOp:
		return foldBoolOp(v, ctx)
	case *UnaryOp:
		return foldUnaryOp(v, ctx)
	case *Compare:
		return foldCompare(v, ctx)
	case *Subscript:
		return inferSubscript(v, ctx)
	case *IfExp:
		return inferIfExp(v, ctx)
	case *JoinedStr:
		return foldJoinedStr(v, ctx)
	case *Import:
		return inferImport(v, ctx)
	case *ImportFrom:
		return inferImportFrom(v, ctx)
	case *Param:
		return inferParam(v, ctx)
	case *Await:
		return []Value{Uninferable}, nil
	}
	return []Value{Uninferable}, nil
}

// orUninferable stands Uninferable in for a branch that had candidates but
// resolved none of them, keeping truncation distinct from "no sources".
func orUninferable(vals []Value, hadSources bool) []Value {
	if len(vals) == 0 && hadSources {
		return []Value{Uninferable}
	}
	return vals
}

func inferName(n *Name, ctx *Context) ([]Value, error) {
	_, binds, err := Lookup(n, n.Name)
	if err != nil {
		if ctx.strict {
			return nil, err
		}
		return []Value{Uninferable}, nil
	}
	vals, err := inferBindings(n.Name, binds, ctx)
	if err != nil {
		return nil, err
	}
	return orUninferable(vals, len(binds) > 0), nil
}

func inferAttribute(n *Attribute, ctx *Context) ([]Value, error) {
	owners, err := inferAll(n.Value, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	var firstErr error
	for _, o := range owners {
		if IsUninferable(o) {
			out = append(out, Uninferable)
			continue
		}
		vs, aerr := o.Attr(n.Attr, ctx)
		if aerr != nil {
			if firstErr == nil {
				firstErr = aerr
			}
			continue
		}
		out = append(out, vs...)
	}
	if len(out) == 0 {
		if ctx.strict && firstErr != nil {
			return nil, firstErr
		}
		return orUninferable(nil, len(owners) > 0), nil
	}
	return dedupValues(out), nil
}

func inferCall(n *Call, ctx *Context) ([]Value, error) {
	callees, err := inferAll(n.Func, ctx)
	if err != nil {
		return nil, err
	}
	callCtx := ctx.withCall(&CallContext{Args: n.Args, Keywords: n.Keywords})
	var out []Value
	var firstErr error
	for _, c := range callees {
		if IsUninferable(c) {
			out = append(out, Uninferable)
			continue
		}
		fn, ok := c.(Callable)
		if !ok {
			continue
		}
		vs, cerr := fn.CallResult(n, callCtx)
		if cerr != nil {
			if firstErr == nil {
				firstErr = cerr
			}
			continue
		}
		out = append(out, vs...)
	}
	if len(out) == 0 && ctx.strict && firstErr != nil {
		return nil, firstErr
	}
	return dedupValues(orUninferable(out, len(callees) > 0)), nil
}

func inferIfExp(n *IfExp, ctx *Context) ([]Value, error) {
	// a constant test picks its branch; otherwise both contribute
	if tv, ok := singleConst(n.Test, ctx); ok {
		if truthy, known := constTruthiness(tv); known {
			if truthy {
				return inferAll(n.Body, ctx)
			}
			return inferAll(n.Orelse, ctx)
		}
	}
	body, err := inferAll(n.Body, ctx)
	if err != nil {
		return nil, err
	}
	orelse, err := inferAll(n.Orelse, ctx)
	if err != nil {
		return nil, err
	}
	return dedupValues(append(body, orelse...)), nil
}

// --- constant folding ---

// singleConst reports the sole constant candidate of an expression.
func singleConst(n Node, ctx *Context) (*Const, bool) {
	vals, err := inferAll(n, ctx)
	if err != nil || len(vals) != 1 {
		return nil, false
	}
	c, ok := vals[0].(*Const)
	return c, ok
}

// constTruthiness evaluates a constant the way a condition would.
func constTruthiness(c *Const) (truthy, known bool) {
	switch c.Kind {
	case ConstNone:
		return false, true
	case ConstBool:
		b, _ := c.Value.(bool)
		return b, true
	case ConstInt:
		i, _ := c.Value.(int64)
		return i != 0, true
	case ConstFloat:
		f, _ := c.Value.(float64)
		return f != 0, true
	case ConstStr, ConstBytes:
		s, _ := c.Value.(string)
		return s != "", true
	case ConstEllipsis:
		return true, true
	}
	return false, false
}

func foldBinOp(n *BinOp, ctx *Context) ([]Value, error) {
	lefts, err := inferAll(n.Left, ctx)
	if err != nil {
		return nil, err
	}
	rights, err := inferAll(n.Right, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, lv := range lefts {
		for _, rv := range rights {
			lc, lok := lv.(*Const)
			rc, rok := rv.(*Const)
			if !lok || !rok {
				out = append(out, Uninferable)
				continue
			}
			if folded := foldConstPair(n, n.Op, lc, rc); folded != nil {
				out = append(out, folded)
			} else {
				out = append(out, Uninferable)
			}
		}
	}
	return dedupValues(orUninferable(out, true)), nil
}

// foldConstPair applies one binary operator to two constants, nil when the
// combination has no static result.
func foldConstPair(origin Node, op string, l, r *Const) Value {
	if l.Kind == ConstStr && r.Kind == ConstStr && op == "+" {
		ls, _ := l.Value.(string)
		rs, _ := r.Value.(string)
		return synthConst(origin, ConstStr, ls+rs)
	}
	if l.Kind == ConstBytes && r.Kind == ConstBytes && op == "+" {
		ls, _ := l.Value.(string)
		rs, _ := r.Value.(string)
		return synthConst(origin, ConstBytes, ls+rs)
	}
	if l.Kind == ConstStr && r.Kind == ConstInt && op == "*" {
		s, _ := l.Value.(string)
		return synthConst(origin, ConstStr, repeatString(s, r.Value.(int64)))
	}
	if l.Kind == ConstInt && r.Kind == ConstStr && op == "*" {
		s, _ := r.Value.(string)
		return synthConst(origin, ConstStr, repeatString(s, l.Value.(int64)))
	}

	li, lInt := constInt(l)
	ri, rInt := constInt(r)
	if lInt && rInt {
		if v, ok := foldInts(op, li, ri); ok {
			return synthConst(origin, kindOfNumeric(v), v)
		}
		return nil
	}
	lf, lNum := constFloat(l)
	rf, rNum := constFloat(r)
	if lNum && rNum {
		if v, ok := foldFloats(op, lf, rf); ok {
			return synthConst(origin, ConstFloat, v)
		}
	}
	return nil
}

func constInt(c *Const) (int64, bool) {
	switch c.Kind {
	case ConstInt:
		i, _ := c.Value.(int64)
		return i, true
	case ConstBool:
		if b, _ := c.Value.(bool); b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func constFloat(c *Const) (float64, bool) {
	if c.Kind == ConstFloat {
		f, _ := c.Value.(float64)
		return f, true
	}
	if i, ok := constInt(c); ok {
		return float64(i), true
	}
	return 0, false
}

func kindOfNumeric(v any) ConstKind {
	if _, ok := v.(float64); ok {
		return ConstFloat
	}
	return ConstInt
}

func foldInts(op string, a, b int64) (any, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		if b == 0 {
			return nil, false
		}
		return float64(a) / float64(b), true
	case "//":
		if b == 0 {
			return nil, false
		}
		return floorDiv(a, b), true
	case "%":
		if b == 0 {
			return nil, false
		}
		return a - floorDiv(a, b)*b, true
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), true
		}
		out := int64(1)
		for range b {
			out *= a
		}
		return out, true
	case "|":
		return a | b, true
	case "&":
		return a & b, true
	case "^":
		return a ^ b, true
	case "<<":
		if b < 0 || b > 62 {
			return nil, false
		}
		return a << b, true
	case ">>":
		if b < 0 {
			return nil, false
		}
		return a >> min(b, 63), true
	}
	return nil, false
}

// floorDiv matches the analyzed language's floor semantics for negative
// operands, not Go's truncation.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func foldFloats(op string, a, b float64) (float64, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case "//":
		if b == 0 {
			return 0, false
		}
		return math.Floor(a / b), true
	case "%":
		if b == 0 {
			return 0, false
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, true
	case "**":
		return math.Pow(a, b), true
	}
	return 0, false
}

func repeatString(s string, n int64) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, int(n))
}

func foldUnaryOp(n *UnaryOp, ctx *Context) ([]Value, error) {
	vals, err := inferAll(n.Operand, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, v := range vals {
		c, ok := v.(*Const)
		if !ok {
			out = append(out, Uninferable)
			continue
		}
		if folded := foldConstUnary(n, n.Op, c); folded != nil {
			out = append(out, folded)
		} else {
			out = append(out, Uninferable)
		}
	}
	return dedupValues(orUninferable(out, true)), nil
}

func foldConstUnary(origin Node, op string, c *Const) Value {
	switch op {
	case "not":
		if truthy, known := constTruthiness(c); known {
			return synthConst(origin, ConstBool, !truthy)
		}
	case "-":
		if i, ok := constInt(c); ok && c.Kind != ConstBool {
			return synthConst(origin, ConstInt, -i)
		}
		if f, ok := constFloat(c); ok {
			return synthConst(origin, ConstFloat, -f)
		}
	case "+":
		if c.Kind == ConstInt || c.Kind == ConstFloat {
			return c
		}
	case "~":
		if i, ok := constInt(c); ok {
			return synthConst(origin, ConstInt, ^i)
		}
	}
	return nil
}

// foldBoolOp resolves short-circuit chains when every operand folds to one
// constant: the chain yields the deciding operand itself.
func foldBoolOp(n *BoolOp, ctx *Context) ([]Value, error) {
	if len(n.Values) == 0 {
		return []Value{Uninferable}, nil
	}
	consts := make([]*Const, 0, len(n.Values))
	for _, v := range n.Values {
		c, ok := singleConst(v, ctx)
		if !ok {
			return []Value{Uninferable}, nil
		}
		consts = append(consts, c)
	}
	for _, c := range consts[:len(consts)-1] {
		truthy, known := constTruthiness(c)
		if !known {
			return []Value{Uninferable}, nil
		}
		if n.Op == "or" && truthy {
			return []Value{c}, nil
		}
		if n.Op == "and" && !truthy {
			return []Value{c}, nil
		}
	}
	return []Value{consts[len(consts)-1]}, nil
}

func foldCompare(n *Compare, ctx *Context) ([]Value, error) {
	if len(n.Ops) != len(n.Comparators) || len(n.Ops) == 0 {
		return []Value{Uninferable}, nil
	}
	operands := make([]*Const, 0, len(n.Comparators)+1)
	c, ok := singleConst(n.Left, ctx)
	if !ok {
		return []Value{Uninferable}, nil
	}
	operands = append(operands, c)
	for _, cmp := range n.Comparators {
		c, ok = singleConst(cmp, ctx)
		if !ok {
			return []Value{Uninferable}, nil
		}
		operands = append(operands, c)
	}
	// a chain is the conjunction of its pairwise comparisons
	for i, op := range n.Ops {
		res, known := compareConsts(op, operands[i], operands[i+1])
		if !known {
			return []Value{Uninferable}, nil
		}
		if !res {
			return []Value{synthConst(n, ConstBool, false)}, nil
		}
	}
	return []Value{synthConst(n, ConstBool, true)}, nil
}

func compareConsts(op string, l, r *Const) (result, known bool) {
	switch op {
	case "is":
		return l.Kind == ConstNone && r.Kind == ConstNone, l.Kind == ConstNone || r.Kind == ConstNone
	case "is not":
		res, k := compareConsts("is", l, r)
		return !res, k
	case "==", "!=", "<", "<=", ">", ">=":
	default:
		return false, false
	}
	var cmp int
	switch {
	case l.Kind == ConstStr && r.Kind == ConstStr:
		ls, _ := l.Value.(string)
		rs, _ := r.Value.(string)
		cmp = strings.Compare(ls, rs)
	default:
		lf, lok := constFloat(l)
		rf, rok := constFloat(r)
		if !lok || !rok {
			if op == "==" || op == "!=" {
				// mixed kinds are simply unequal
				return op == "!=", true
			}
			return false, false
		}
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	}
	switch op {
	case "==":
		return cmp == 0, true
	case "!=":
		return cmp != 0, true
	case "<":
		return cmp < 0, true
	case "<=":
		return cmp <= 0, true
	case ">":
		return cmp > 0, true
	case ">=":
		return cmp >= 0, true
	}
	return false, false
}

func foldJoinedStr(n *JoinedStr, ctx *Context) ([]Value, error) {
	var sb strings.Builder
	for _, p := range n.Parts {
		c, ok := singleConst(p, ctx)
		if !ok || c.Kind != ConstStr {
			return []Value{Uninferable}, nil
		}
		s, _ := c.Value.(string)
		sb.WriteString(s)
	}
	return []Value{synthConst(n, ConstStr, sb.String())}, nil
}

func inferSubscript(n *Subscript, ctx *Context) ([]Value, error) {
	containers, err := inferAll(n.Value, ctx)
	if err != nil {
		return nil, err
	}
	indexes, err := inferAll(n.Index, ctx)
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, cv := range containers {
		for _, iv := range indexes {
			ic, ok := iv.(*Const)
			if !ok {
				out = append(out, Uninferable)
				continue
			}
			vs := subscriptConst(cv, ic, ctx)
			out = append(out, vs...)
		}
	}
	return dedupValues(orUninferable(out, true)), nil
}

func subscriptConst(container Value, index *Const, ctx *Context) []Value {
	switch cv := container.(type) {
	case *List:
		return indexElements(cv.Elts, index, ctx)
	case *Tuple:
		return indexElements(cv.Elts, index, ctx)
	case *Dict:
		for i, k := range cv.Keys {
			kc, ok := k.(*Const)
			if !ok {
				continue
			}
			if kc.Kind == index.Kind && kc.Value == index.Value {
				vs, err := inferAll(cv.Values[i], ctx)
				if err != nil {
					return []Value{Uninferable}
				}
				return vs
			}
		}
	case *Const:
		if cv.Kind == ConstStr {
			s, _ := cv.Value.(string)
			if i, ok := constInt(index); ok {
				if i < 0 {
					i += int64(len(s))
				}
				if i >= 0 && i < int64(len(s)) {
					return []Value{synthConst(cv, ConstStr, string(s[i]))}
				}
			}
		}
	}
	return []Value{Uninferable}
}

func indexElements(elts []Node, index *Const, ctx *Context) []Value {
	i, ok := constInt(index)
	if !ok {
		return []Value{Uninferable}
	}
	return indexInto(elts, i, ctx)
}

func indexInto(elts []Node, i int64, ctx *Context) []Value {
	for _, e := range elts {
		if _, starred := e.(*Starred); starred {
			return []Value{Uninferable}
		}
	}
	if i < 0 {
		i += int64(len(elts))
	}
	if i < 0 || i >= int64(len(elts)) {
		return []Value{Uninferable}
	}
	vs, err := inferAll(elts[i], ctx)
	if err != nil {
		return []Value{Uninferable}
	}
	return vs
}
