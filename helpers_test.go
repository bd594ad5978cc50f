package taproot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestSession builds a session whose cache unregisters at test end.
func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	sess, err := NewSession(opts...)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

// buildSource builds and registers one module from source.
func buildSource(t *testing.T, sess *Session, name, src string) *Module {
	t.Helper()
	mod, err := sess.BuildSource([]byte(src), name, "")
	require.NoError(t, err)
	return mod
}

// lastBinding returns the newest module-scope binding of name.
func lastBinding(t *testing.T, mod *Module, name string) Node {
	t.Helper()
	binds := mod.LocalBindings(name)
	require.NotEmpty(t, binds, "no module binding for %q", name)
	return binds[len(binds)-1]
}

// inferLocal materializes the values of name's newest module-scope binding.
func inferLocal(t *testing.T, mod *Module, name string) []Value {
	t.Helper()
	vals, err := InferAll(lastBinding(t, mod, name), nil)
	require.NoError(t, err)
	return vals
}

// singleValue asserts name infers to exactly one candidate and returns it.
func singleValue(t *testing.T, mod *Module, name string) Value {
	t.Helper()
	vals := inferLocal(t, mod, name)
	require.Len(t, vals, 1, "expected one candidate for %q, got %s", name, displays(vals))
	return vals[0]
}

// constOf asserts v is a constant of the given kind and returns its payload.
func constOf(t *testing.T, v Value, kind ConstKind) any {
	t.Helper()
	c, ok := v.(*Const)
	require.True(t, ok, "expected *Const, got %T (%s)", v, v.Display())
	require.Equal(t, kind, c.Kind, "kind of %s", v.Display())
	return c.Value
}

func displays(vals []Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Display()
	}
	return out
}

// classIn returns the class bound to name in mod's scope.
func classIn(t *testing.T, mod *Module, name string) *ClassDef {
	t.Helper()
	binds := mod.LocalBindings(name)
	require.NotEmpty(t, binds, "no binding for class %q", name)
	cls, ok := binds[len(binds)-1].(*ClassDef)
	require.True(t, ok, "binding for %q is %T", name, binds[len(binds)-1])
	return cls
}

func mroNames(t *testing.T, cls *ClassDef) []string {
	t.Helper()
	mro, err := cls.MRO(nil)
	require.NoError(t, err)
	names := make([]string, len(mro))
	for i, c := range mro {
		names[i] = c.Name
	}
	return names
}

// findName returns the idx-th Name node (source order) spelled ident.
func findName(t *testing.T, root Node, ident string, idx int) *Name {
	t.Helper()
	hits := FindAll(root, func(n Node) bool {
		nm, ok := n.(*Name)
		return ok && nm.Name == ident
	})
	require.Greater(t, len(hits), idx, "want %d Name %q nodes, found %d", idx+1, ident, len(hits))
	return hits[idx].(*Name)
}
