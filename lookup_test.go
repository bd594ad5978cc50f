package taproot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_SameScopeKeepsSourceOrder(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `v = 1
v = 2
`)

	scope, binds, err := Lookup(mod, "v")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
	require.Len(t, binds, 2)
	assert.Equal(t, 1, binds[0].Span().Line)
	assert.Equal(t, 2, binds[1].Span().Line)
	for _, b := range binds {
		_, ok := b.(*AssignName)
		assert.True(t, ok, "binding %T", b)
	}
}

func TestLookup_ClassBodySeesItsOwnNames(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `class C:
    x = "class"
    y = x
`)

	ref := findName(t, mod, "x", 0)
	scope, binds, err := Lookup(ref, "x")
	require.NoError(t, err)
	cls, ok := scope.(*ClassDef)
	require.True(t, ok, "scope %T", scope)
	assert.Equal(t, "C", cls.Name)
	require.Len(t, binds, 1)
	assert.Equal(t, 2, binds[0].Span().Line)
}

func TestLookup_FunctionChainsPastClassScope(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `x = "module"

class C:
    x = "class"

    def m(self):
        return x
`)

	ref := findName(t, mod, "x", 0)
	scope, binds, err := Lookup(ref, "x")
	require.NoError(t, err)
	assert.Same(t, mod, scope, "class-body binding must stay invisible to the method")
	require.Len(t, binds, 1)
	assert.Equal(t, 1, binds[0].Span().Line)
}

func TestLookup_ModuleFallsBackToBuiltins(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `def f():
    return len
`)

	ref := findName(t, mod, "len", 0)
	scope, binds, err := Lookup(ref, "len")
	require.NoError(t, err)
	assert.Same(t, sess.Builtins(), scope)
	require.NotEmpty(t, binds)
}

func TestLookup_ModuleBindingShadowsBuiltin(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `len = 3

def f():
    return len
`)

	ref := findName(t, mod, "len", 0)
	scope, binds, err := Lookup(ref, "len")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
	require.Len(t, binds, 1)
	assert.Equal(t, 1, binds[0].Span().Line)
}

func TestLookup_GlobalRedirectsToModuleScope(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `def f():
    global counter
    counter = 5

def g():
    return counter
`)

	ref := findName(t, mod, "counter", 0)
	scope, binds, err := Lookup(ref, "counter")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
	require.Len(t, binds, 1)
	assert.Equal(t, 3, binds[0].Span().Line, "assignment under global lands in module scope")
}

func TestLookup_NonlocalBindsNearestFunction(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `def outer():
    v = 1
    def inner():
        nonlocal v
        v = 2
        return v
    return inner
`)

	ref := findName(t, mod, "v", 0)
	scope, binds, err := Lookup(ref, "v")
	require.NoError(t, err)
	fn, ok := scope.(*FunctionDef)
	require.True(t, ok, "scope %T", scope)
	assert.Equal(t, "outer", fn.Name)
	require.Len(t, binds, 1, "inner's own rebinding must not be returned")
	assert.Equal(t, 2, binds[0].Span().Line)
}

func TestLookup_NonlocalWithoutBindingFails(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `def outer():
    def inner():
        nonlocal missing
        missing = 1
`)

	targets := FindAll(mod, func(n Node) bool {
		an, ok := n.(*AssignName)
		return ok && an.Name == "missing"
	})
	require.Len(t, targets, 1)

	_, _, err := Lookup(targets[0], "missing")
	require.Error(t, err)
	var unres *UnresolvableNameError
	require.ErrorAs(t, err, &unres)
	assert.Equal(t, "missing", unres.Name)
	assert.ErrorIs(t, err, ErrResolve)
}

func TestLookup_MissIsNotFound(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "x = 1\n")

	_, _, err := Lookup(mod, "nope")
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
	assert.ErrorIs(t, err, ErrResolve)
}

func TestLookup_NilNodeFails(t *testing.T) {
	_, _, err := Lookup(nil, "x")
	var unres *UnresolvableNameError
	require.ErrorAs(t, err, &unres)
}

func TestLookup_DefaultsEvaluateInEnclosingScope(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `size = 10

def f(n=size):
    size = 0
    return n
`)

	ref := findName(t, mod, "size", 0)
	scope, binds, err := Lookup(ref, "size")
	require.NoError(t, err)
	assert.Same(t, mod, scope, "default expression must not see the function's local")
	require.Len(t, binds, 1)
	assert.Equal(t, 1, binds[0].Span().Line)
}

func TestLookup_ClassBasesEvaluateInEnclosingScope(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `Base = object

class C(Base):
    Base = "shadow"
`)

	ref := findName(t, mod, "Base", 0)
	scope, binds, err := Lookup(ref, "Base")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
	require.Len(t, binds, 1)
	assert.Equal(t, 1, binds[0].Span().Line)
}

func TestLookup_ModuleSpecials(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "pkg.child", "x = 1\n")

	scope, binds, err := Lookup(mod, "__name__")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
	require.Len(t, binds, 1)
	c, ok := binds[0].(*Const)
	require.True(t, ok, "binding %T", binds[0])
	assert.Equal(t, "pkg.child", c.Value)

	_, binds, err = Lookup(mod, "__package__")
	require.NoError(t, err)
	require.Len(t, binds, 1)
	assert.Equal(t, "pkg", binds[0].(*Const).Value)
}

func TestLookup_AssignedSpecialShadowsSynthetic(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `__name__ = "custom"
`)

	_, binds, err := Lookup(mod, "__name__")
	require.NoError(t, err)
	require.Len(t, binds, 1)
	_, ok := binds[0].(*AssignName)
	assert.True(t, ok, "explicit assignment wins over the synthesized constant, got %T", binds[0])
}

func TestLookup_ClassCellInMethods(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `class C:
    def m(self):
        return __class__
`)

	ref := findName(t, mod, "__class__", 0)
	_, binds, err := Lookup(ref, "__class__")
	require.NoError(t, err)
	require.Len(t, binds, 1)
	cls, ok := binds[0].(*ClassDef)
	require.True(t, ok, "binding %T", binds[0])
	assert.Equal(t, "C", cls.Name)
}

func TestLookup_ComprehensionScopes(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `items = [1, 2]
out = [x + items[0] for x in items]
`)

	// the loop target lives in the comprehension's own scope
	xref := findName(t, mod, "x", 0)
	scope, binds, err := Lookup(xref, "x")
	require.NoError(t, err)
	_, ok := scope.(*Comp)
	assert.True(t, ok, "scope %T", scope)
	require.NotEmpty(t, binds)

	// free names chain out to the module
	iref := findName(t, mod, "items", 0)
	scope, _, err = Lookup(iref, "items")
	require.NoError(t, err)
	assert.Same(t, mod, scope)
}
