package stubrt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScript declares one module exercising every declaration form.
const stubScript = `
defmodule({"name": "demo", "doc": "Demo native module."})

defclass({
    "name": "object",
    "doc": "Root of the class hierarchy.",
    "methods": [
        {"name": "__init__", "params": ["self"]},
        {"name": "__str__", "params": ["self"], "returns": "str"},
    ],
})

defclass({
    "name": "counter",
    "bases": ["object"],
    "methods": [
        {"name": "next", "params": ["self"], "returns": "int"},
        {"name": "walk", "params": ["self"], "returns": "int", "generator": true},
    ],
    "attrs": [
        {"name": "START", "kind": "int", "value": 0},
    ],
})

deffunc({
    "name": "make_counter",
    "doc": "Builds a counter.",
    "params": ["start"],
    "returns": "counter",
})

defconst({"name": "VERSION", "kind": "str", "value": "1.0"})
defconst({"name": "LIMIT", "kind": "int", "value": 128})
defconst({"name": "RATIO", "kind": "float", "value": 0.5})
defconst({"name": "ENABLED", "kind": "bool", "value": true})
defconst({"name": "MISSING"})
`

// --- EvalSource tests ---

func TestEvalSource_CollectsDeclarations(t *testing.T) {
	rt := New()
	mods, err := rt.EvalSource(context.Background(), stubScript, "test")
	require.NoError(t, err)
	require.Len(t, mods, 1)

	mod := mods[0]
	assert.Equal(t, "demo", mod.Name)
	assert.Equal(t, "Demo native module.", mod.Doc)

	require.Len(t, mod.Classes, 2)
	obj := mod.Classes[0]
	assert.Equal(t, "object", obj.Name)
	assert.Empty(t, obj.Bases)
	require.Len(t, obj.Methods, 2)
	assert.Equal(t, "__init__", obj.Methods[0].Name)
	assert.Equal(t, []string{"self"}, obj.Methods[0].Params)
	assert.Equal(t, "str", obj.Methods[1].Returns)

	counter := mod.Classes[1]
	assert.Equal(t, []string{"object"}, counter.Bases)
	require.Len(t, counter.Methods, 2)
	assert.False(t, counter.Methods[0].Generator)
	assert.True(t, counter.Methods[1].Generator)
	require.Len(t, counter.Attrs, 1)
	assert.Equal(t, "START", counter.Attrs[0].Name)
	assert.Equal(t, int64(0), counter.Attrs[0].Value)

	require.Len(t, mod.Funcs, 1)
	fn := mod.Funcs[0]
	assert.Equal(t, "make_counter", fn.Name)
	assert.Equal(t, []string{"start"}, fn.Params)
	assert.Equal(t, "counter", fn.Returns)

	require.Len(t, mod.Consts, 5)
	assert.Equal(t, "1.0", mod.Consts[0].Value)
	assert.Equal(t, int64(128), mod.Consts[1].Value)
	assert.Equal(t, 0.5, mod.Consts[2].Value)
	assert.Equal(t, true, mod.Consts[3].Value)
	assert.Equal(t, "none", mod.Consts[4].Kind)
	assert.Nil(t, mod.Consts[4].Value)
}

func TestEvalSource_DeclarationsAttachToLatestModule(t *testing.T) {
	rt := New()
	script := `
defmodule({"name": "first"})
defconst({"name": "A", "kind": "int", "value": 1})
defmodule({"name": "second"})
defconst({"name": "B", "kind": "int", "value": 2})
`
	mods, err := rt.EvalSource(context.Background(), script, "test")
	require.NoError(t, err)
	require.Len(t, mods, 2)

	require.Len(t, mods[0].Consts, 1)
	assert.Equal(t, "A", mods[0].Consts[0].Name)
	require.Len(t, mods[1].Consts, 1)
	assert.Equal(t, "B", mods[1].Consts[0].Name)
}

func TestEvalSource_EmptyScript(t *testing.T) {
	rt := New()
	mods, err := rt.EvalSource(context.Background(), "", "empty")
	require.NoError(t, err)
	assert.Empty(t, mods)
}

func TestEvalSource_ConstBeforeModuleFails(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `defconst({"name": "X", "kind": "int", "value": 1})`, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no module declared")
}

func TestEvalSource_FuncBeforeModuleFails(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `deffunc({"name": "f"})`, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no module declared")
}

func TestEvalSource_ArityError(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `defmodule()`, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defmodule")
}

func TestEvalSource_MissingNameFails(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `defmodule({"doc": "nameless"})`, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestEvalSource_NonMapArgFails(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `defmodule("demo")`, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected map")
}

func TestEvalSource_ErrorNamesScript(t *testing.T) {
	rt := New()
	_, err := rt.EvalSource(context.Background(), `this is not risor`, "broken.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.risor")
}

// --- EvalScript loading tests ---

func TestEvalScript_FromFS(t *testing.T) {
	mapFS := fstest.MapFS{
		"mods.risor": &fstest.MapFile{Data: []byte(stubScript)},
	}

	rt := New(WithFS(mapFS))
	mods, err := rt.EvalScript(context.Background(), "mods.risor")
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "demo", mods[0].Name)
}

func TestEvalScript_FromFS_StripsLeadingSeparator(t *testing.T) {
	mapFS := fstest.MapFS{
		"mods.risor": &fstest.MapFile{Data: []byte(`defmodule({"name": "demo"})`)},
	}

	rt := New(WithFS(mapFS))
	mods, err := rt.EvalScript(context.Background(), "/mods.risor")
	require.NoError(t, err)
	require.Len(t, mods, 1)
}

func TestEvalScript_FromFS_Missing(t *testing.T) {
	rt := New(WithFS(fstest.MapFS{}))
	_, err := rt.EvalScript(context.Background(), "nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestEvalScript_FromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mods.risor"), []byte(stubScript), 0o644))

	rt := New(WithDir(dir))
	mods, err := rt.EvalScript(context.Background(), "mods.risor")
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "demo", mods[0].Name)
}

func TestEvalScript_FromDir_Missing(t *testing.T) {
	rt := New(WithDir(t.TempDir()))
	_, err := rt.EvalScript(context.Background(), "nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading script")
}

// --- Importer wiring tests ---

func TestEvalSource_ImportSharedFragment(t *testing.T) {
	// Declaration globals must be visible inside imported fragments so shared
	// stub pieces can be factored out.
	mapFS := fstest.MapFS{
		"shared.risor": &fstest.MapFile{Data: []byte(`
func declare_limits() {
    defconst({"name": "MIN", "kind": "int", "value": 1})
    defconst({"name": "MAX", "kind": "int", "value": 9})
}
`)},
	}

	rt := New(WithFS(mapFS))
	script := `
import shared

defmodule({"name": "demo"})
shared.declare_limits()
`
	mods, err := rt.EvalSource(context.Background(), script, "main")
	require.NoError(t, err)
	require.Len(t, mods, 1)
	require.Len(t, mods[0].Consts, 2)
	assert.Equal(t, "MIN", mods[0].Consts[0].Name)
	assert.Equal(t, "MAX", mods[0].Consts[1].Name)
}
