package taproot

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Inference budget defaults. Exhaustion truncates to Uninferable, never
// errors.
const (
	DefaultMaxDepth      = 100
	DefaultMaxCandidates = 500
)

// Limits bounds one top-level inference request.
type Limits struct {
	MaxDepth      int // recursion ceiling
	MaxCandidates int // total inferred values across the walk
}

func (l Limits) orDefaults() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxCandidates <= 0 {
		l.MaxCandidates = DefaultMaxCandidates
	}
	return l
}

type pathKey struct {
	id   uint64
	name string
}

// Context threads the state of one top-level inference request: the set of
// (node, lookup name) pairs currently being inferred (the cycle guard),
// optional call-site bindings, and the shared candidate budget. Contexts are
// immutable; every recursive step extends a copy, so sibling branches never
// observe each other's guard entries.
type Context struct {
	path       map[pathKey]struct{}
	lookupName string
	call       *CallContext
	bound      Value
	depth      int
	limits     Limits
	strict     bool

	// shared across all copies descended from one NewContext
	nodesInferred *int
}

// CallContext carries call-site bindings. Argument nodes are held
// unevaluated and inferred only when a parameter lookup needs them.
type CallContext struct {
	Args     []Node
	Keywords []*Keyword
}

// NewContext returns a fresh context with default limits, tracking one
// top-level inference request.
func NewContext() *Context {
	return newContext(Limits{}, false)
}

func newContext(limits Limits, strict bool) *Context {
	n := 0
	return &Context{limits: limits.orDefaults(), strict: strict, nodesInferred: &n}
}

func orNew(c *Context) *Context {
	if c == nil {
		return NewContext()
	}
	return c
}

func (c *Context) clone() *Context {
	d := *c
	return &d
}

// pushed reports whether the node is already being inferred under this
// lookup name.
func (c *Context) pushed(id uint64, name string) bool {
	_, ok := c.path[pathKey{id, name}]
	return ok
}

// push extends the guard path with one in-progress entry. The receiver's
// path map is never mutated; copies share it safely.
func (c *Context) push(id uint64, name string) *Context {
	d := c.clone()
	d.path = make(map[pathKey]struct{}, len(c.path)+1)
	for k := range c.path {
		d.path[k] = struct{}{}
	}
	d.path[pathKey{id, name}] = struct{}{}
	d.depth++
	return d
}

func (c *Context) withLookup(name string) *Context {
	if c.lookupName == name {
		return c
	}
	d := c.clone()
	d.lookupName = name
	return d
}

// withCall installs call-site bindings, clearing any receiver binding from
// an outer call.
func (c *Context) withCall(call *CallContext) *Context {
	d := c.clone()
	d.call = call
	d.bound = nil
	return d
}

func (c *Context) withBound(v Value) *Context {
	d := c.clone()
	d.bound = v
	return d
}

// fork keeps the guard path and budgets but clears call bindings and the
// lookup name, for descending into an unrelated subproblem.
func (c *Context) fork() *Context {
	if c == nil {
		return NewContext()
	}
	d := c.clone()
	d.call = nil
	d.bound = nil
	d.lookupName = ""
	return d
}

// budget consumes one inferred-candidate slot, reporting false once the
// ceiling is reached. The counter is shared by every copy of the context.
func (c *Context) budget() bool {
	if *c.nodesInferred >= c.limits.MaxCandidates {
		return false
	}
	*c.nodesInferred++
	return true
}

func (c *Context) depthExceeded() bool { return c.depth > c.limits.MaxDepth }

// Signature is the normalized cache-key component of the context: the
// in-progress guard set, the lookup name, and a digest of call bindings.
// Contexts with equal signatures are interchangeable for caching, so one
// construct analyzed twice under the same effective bindings reuses its
// result.
func (c *Context) Signature() string {
	keys := make([]pathKey, 0, len(c.path))
	for k := range c.path {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b pathKey) int {
		if a.id != b.id {
			return cmp.Compare(a.id, b.id)
		}
		return cmp.Compare(a.name, b.name)
	})
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.FormatUint(k.id, 10))
		sb.WriteByte(':')
		sb.WriteString(k.name)
		sb.WriteByte(';')
	}
	sb.WriteByte('|')
	sb.WriteString(c.lookupName)
	sb.WriteByte('|')
	if c.call != nil {
		for _, a := range c.call.Args {
			fmt.Fprintf(&sb, "a%d,", a.nodeID())
		}
		for _, kw := range c.call.Keywords {
			fmt.Fprintf(&sb, "k%s=%d,", kw.Arg, kw.Value.nodeID())
		}
	}
	if c.bound != nil {
		sb.WriteByte('|')
		sb.WriteString(boundDigest(c.bound))
	}
	return sb.String()
}

// boundDigest identifies a bound receiver for cache keys. Instances digest
// by class, matching how results deduplicate.
func boundDigest(v Value) string {
	switch b := v.(type) {
	case *Instance:
		return "i" + strconv.FormatUint(b.Class.nodeID(), 10)
	case Node:
		return "n" + strconv.FormatUint(b.nodeID(), 10)
	}
	return v.Display()
}
