package taproot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSource_ModuleShape(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `"""A demo module."""

x = 1

def f():
    pass
`)

	assert.Equal(t, "demo", mod.Name)
	assert.Equal(t, "A demo module.", mod.Doc)
	assert.Equal(t, "demo", mod.QName())
	assert.Same(t, mod, mod.Root())
	assert.Same(t, sess, mod.Session())
	assert.False(t, mod.Package)
	assert.False(t, mod.Synthetic)

	require.NotEmpty(t, mod.LocalBindings("x"))
	require.NotEmpty(t, mod.LocalBindings("f"))
	_, ok := mod.LocalBindings("f")[0].(*FunctionDef)
	assert.True(t, ok)
}

func TestBuildSource_SyntaxErrorRejectsWholeModule(t *testing.T) {
	sess := newTestSession(t)
	_, err := sess.BuildSource([]byte("def broken(:\n    pass\n"), "broken", "broken.py")
	require.Error(t, err)

	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "broken.py", serr.Path)
	assert.GreaterOrEqual(t, serr.Line, 1)
	assert.True(t, errors.Is(err, ErrBuild))
	assert.False(t, errors.Is(err, ErrResolve))

	// Nothing was registered for the failed build.
	_, ok := sess.lookup("broken")
	assert.False(t, ok)
}

func TestBuild_ParentChainReachesRoot(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
def outer():
    def inner():
        return 1
    return inner
`)

	outer := mod.LocalBindings("outer")[0].(*FunctionDef)
	inner := outer.LocalBindings("inner")[0].(*FunctionDef)
	assert.Same(t, outer, inner.Parent().(*FunctionDef))
	assert.Same(t, mod, inner.Root())
	assert.Equal(t, "demo.outer.inner", inner.QName())
}

func TestBuild_Docstrings(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `"""Module doc."""

class C:
    """Class doc."""

    def m(self):
        """Method doc."""
        return 1
`)

	assert.Equal(t, "Module doc.", mod.Doc)
	cls := mod.LocalBindings("C")[0].(*ClassDef)
	assert.Equal(t, "Class doc.", cls.Doc)
	m := cls.LocalBindings("m")[0].(*FunctionDef)
	assert.Equal(t, "Method doc.", m.Doc)
	assert.True(t, m.IsMethod())
	assert.Equal(t, "demo.C.m", m.QName())
}

func TestBuild_Parameters(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
def f(a, b: int, c=1, *rest, d, e=2, **extra):
    return a
`)

	f := mod.LocalBindings("f")[0].(*FunctionDef)
	require.NotNil(t, f.Args)
	params := f.Args.Params
	require.Len(t, params, 7)

	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, ParamPositional, params[0].Kind)
	assert.Nil(t, params[0].Default)

	assert.Equal(t, "b", params[1].Name)
	assert.NotNil(t, params[1].Annotation)

	assert.Equal(t, "c", params[2].Name)
	assert.NotNil(t, params[2].Default)

	assert.Equal(t, "rest", params[3].Name)
	assert.Equal(t, ParamVararg, params[3].Kind)

	assert.Equal(t, "d", params[4].Name)
	assert.Equal(t, ParamKwOnly, params[4].Kind)

	assert.Equal(t, "e", params[5].Name)
	assert.Equal(t, ParamKwOnly, params[5].Kind)
	assert.NotNil(t, params[5].Default)

	assert.Equal(t, "extra", params[6].Name)
	assert.Equal(t, ParamKwarg, params[6].Kind)

	// Parameter names are bound in the function scope.
	for _, name := range []string{"a", "b", "c", "rest", "d", "e", "extra"} {
		assert.NotEmpty(t, f.LocalBindings(name), "parameter %q not bound", name)
	}
}

func TestBuild_DefaultValueLookup(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "def f(a, b=5):\n    return b\n")

	f := mod.LocalBindings("f")[0].(*FunctionDef)
	def, err := f.Args.DefaultValue("b")
	require.NoError(t, err)
	c, ok := def.(*Const)
	require.True(t, ok)
	assert.Equal(t, int64(5), c.Value)

	_, err = f.Args.DefaultValue("a")
	var nd *NoDefaultError
	require.ErrorAs(t, err, &nd)
	assert.Equal(t, "a", nd.Param)

	_, err = f.Args.DefaultValue("zz")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestBuild_ClassBasesKeywordsDecorators(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
def deco(c):
    return c

@deco
class C(Base, metaclass=Meta):
    pass
`)

	cls := mod.LocalBindings("C")[0].(*ClassDef)
	require.Len(t, cls.Bases, 1)
	base, ok := cls.Bases[0].(*Name)
	require.True(t, ok)
	assert.Equal(t, "Base", base.Name)

	require.Len(t, cls.Keywords, 1)
	assert.Equal(t, "metaclass", cls.Keywords[0].Arg)

	require.Len(t, cls.Decorators, 1)
	dec, ok := cls.Decorators[0].(*Name)
	require.True(t, ok)
	assert.Equal(t, "deco", dec.Name)
}

func TestBuild_InstanceAttrsRecorded(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
class Point:
    def __init__(self, x):
        self.x = x
        self.y = 0

    def shift(self):
        self.x = self.x + 1

    @staticmethod
    def make(obj):
        obj.z = 1
`)

	cls := mod.LocalBindings("Point")[0].(*ClassDef)
	attrs := cls.InstanceAttrs()
	assert.Len(t, attrs["x"], 2) // __init__ and shift both assign it
	assert.Len(t, attrs["y"], 1)
	// Static methods have no receiver; obj.z is not an instance attribute.
	assert.Empty(t, attrs["z"])
}

func TestBuild_GlobalRegistersInModuleScope(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
def setup():
    global counter
    counter = 10
`)

	assert.NotEmpty(t, mod.LocalBindings("counter"))
	f := mod.LocalBindings("setup")[0].(*FunctionDef)
	assert.Empty(t, f.LocalBindings("counter"))
}

func TestBuild_Imports(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
import os.path
import json as j
from collections import OrderedDict as OD, deque
from ..pkg import helper
from . import sibling
`)

	// import os.path binds the root package name.
	require.NotEmpty(t, mod.LocalBindings("os"))
	require.NotEmpty(t, mod.LocalBindings("j"))
	require.NotEmpty(t, mod.LocalBindings("OD"))
	require.NotEmpty(t, mod.LocalBindings("deque"))
	require.NotEmpty(t, mod.LocalBindings("helper"))
	require.NotEmpty(t, mod.LocalBindings("sibling"))

	imp, ok := mod.LocalBindings("helper")[0].(*ImportFrom)
	require.True(t, ok)
	assert.Equal(t, "pkg", imp.Module)
	assert.Equal(t, 2, imp.Level)

	rel, ok := mod.LocalBindings("sibling")[0].(*ImportFrom)
	require.True(t, ok)
	assert.Equal(t, "", rel.Module)
	assert.Equal(t, 1, rel.Level)
}

func TestBuild_ComprehensionScopesItsTargets(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "squares = [i * i for i in range(3)]\n")

	// The loop variable lives in the comprehension scope, not the module.
	assert.Empty(t, mod.LocalBindings("i"))
	require.NotEmpty(t, mod.LocalBindings("squares"))
}

func TestBuild_WalrusBindsInEnclosingFrame(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "y = (n := 10) + 1\n")

	require.NotEmpty(t, mod.LocalBindings("n"))
	v := singleValue(t, mod, "n")
	assert.Equal(t, int64(10), constOf(t, v, ConstInt))
	assert.Equal(t, int64(11), constOf(t, singleValue(t, mod, "y"), ConstInt))
}

func TestBuild_SpansAreOneBasedLines(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "a = 1\nb = 2\n")

	first := mod.LocalBindings("a")[0]
	second := mod.LocalBindings("b")[0]
	assert.Equal(t, 1, first.Span().Line)
	assert.Equal(t, 2, second.Span().Line)
}

func TestBuild_TryExceptWithBindings(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", `
try:
    risky()
except ValueError as exc:
    pass
finally:
    done = 1

with open("f") as fh:
    pass
`)

	require.NotEmpty(t, mod.LocalBindings("exc"))
	require.NotEmpty(t, mod.LocalBindings("fh"))
	require.NotEmpty(t, mod.LocalBindings("done"))
}

func TestBuild_Python2PrintStatement(t *testing.T) {
	sess := newTestSession(t, WithGrammar("python2"))
	mod := buildSource(t, sess, "legacy", "print \"hello\"\n")

	require.NotEmpty(t, mod.Body)
	stmt, ok := mod.Body[0].(*ExprStmt)
	require.True(t, ok)
	call, ok := stmt.Value.(*Call)
	require.True(t, ok)
	fn, ok := call.Func.(*Name)
	require.True(t, ok)
	assert.Equal(t, "print", fn.Name)
}

func TestBuild_ChainedAssignment(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "a = b = 3\n")

	assert.Equal(t, int64(3), constOf(t, singleValue(t, mod, "a"), ConstInt))
	assert.Equal(t, int64(3), constOf(t, singleValue(t, mod, "b"), ConstInt))
}

func TestBuild_NodeIDsAreUnique(t *testing.T) {
	sess := newTestSession(t)
	mod := buildSource(t, sess, "demo", "x = 1\ny = 2\n")

	seen := make(map[uint64]bool)
	err := Walk(mod, func(n Node) error {
		assert.False(t, seen[n.nodeID()], "duplicate node id")
		seen[n.nodeID()] = true
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(seen), 4)
}
