// Package stubrt runs the Risor stub scripts that declare native module
// surfaces: the builtin classes, functions, and constants that exist without
// any source file. Scripts call host functions (defmodule, defclass,
// deffunc, defconst) and the runtime collects the declarations; synthesizing
// node trees from them happens above this package.
package stubrt

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// ModuleDecl is one declared native module.
type ModuleDecl struct {
	Name    string
	Doc     string
	Classes []*ClassDecl
	Funcs   []*FuncDecl
	Consts  []*ConstDecl
}

// ClassDecl declares a native class: bases by name, methods, and class-level
// constants.
type ClassDecl struct {
	Name    string
	Doc     string
	Bases   []string
	Methods []*FuncDecl
	Attrs   []*ConstDecl
}

// FuncDecl declares a native function or method. Returns names the class
// whose instance a call produces; empty means the call result is None.
type FuncDecl struct {
	Name      string
	Doc       string
	Params    []string
	Returns   string
	Generator bool
}

// ConstDecl declares a named constant. Kind is one of str, bytes, int,
// float, bool, none.
type ConstDecl struct {
	Name  string
	Kind  string
	Value any
}

// Runtime embeds a Risor VM exposing the stub declaration host functions.
type Runtime struct {
	fsys fs.FS
	dir  string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS loads scripts from an fs.FS (typically the embedded stub set) and
// wires the Risor importer to it.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) { r.fsys = fsys }
}

// WithDir loads scripts from a directory on disk instead.
func WithDir(dir string) Option {
	return func(r *Runtime) { r.dir = dir }
}

// New creates a stub runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// collector accumulates declarations as a script runs. Host functions append
// to the most recent defmodule.
type collector struct {
	mu   sync.Mutex
	mods []*ModuleDecl
}

func (c *collector) current() *ModuleDecl {
	if len(c.mods) == 0 {
		return nil
	}
	return c.mods[len(c.mods)-1]
}

// EvalScript loads and runs one stub script, returning the modules it
// declared.
func (r *Runtime) EvalScript(ctx context.Context, path string) ([]*ModuleDecl, error) {
	src, err := r.loadScript(path)
	if err != nil {
		return nil, err
	}
	return r.EvalSource(ctx, src, path)
}

// EvalSource runs stub source directly. label names the script in errors.
func (r *Runtime) EvalSource(ctx context.Context, source, label string) ([]*ModuleDecl, error) {
	c := &collector{}
	globals := map[string]any{
		"defmodule": makeDefModuleFn(c),
		"defclass":  makeDefClassFn(c),
		"deffunc":   makeDefFuncFn(c),
		"defconst":  makeDefConstFn(c),
	}

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return nil, fmt.Errorf("stubrt: script %s: %w", label, err)
	}
	return c.mods, nil
}

// buildImporter wires Risor import statements to the configured script
// source so shared stub fragments can be factored out.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.dir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.dir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

func (r *Runtime) loadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("stubrt: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}
	full := path
	if !filepath.IsAbs(path) && r.dir != "" {
		full = filepath.Join(r.dir, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("stubrt: loading script %s: %w", full, err)
	}
	return string(data), nil
}

// --- host functions ---

// Risor cannot construct Go struct pointers, so declaration functions accept
// maps with primitive values and build the structs on the Go side.

func makeDefModuleFn(c *collector) *object.Builtin {
	return object.NewBuiltin("defmodule", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("defmodule", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("defmodule: %v", err)
		}
		name := getString(m, "name")
		if name == "" {
			return object.Errorf("defmodule: missing name")
		}
		c.mu.Lock()
		c.mods = append(c.mods, &ModuleDecl{Name: name, Doc: getString(m, "doc")})
		c.mu.Unlock()
		return object.Nil
	})
}

func makeDefClassFn(c *collector) *object.Builtin {
	return object.NewBuiltin("defclass", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("defclass", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("defclass: %v", err)
		}
		cls := &ClassDecl{
			Name:  getString(m, "name"),
			Doc:   getString(m, "doc"),
			Bases: getStrings(m, "bases"),
		}
		if cls.Name == "" {
			return object.Errorf("defclass: missing name")
		}
		for _, mm := range getMaps(m, "methods") {
			cls.Methods = append(cls.Methods, funcDeclFrom(mm))
		}
		for _, am := range getMaps(m, "attrs") {
			cls.Attrs = append(cls.Attrs, constDeclFrom(am))
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		mod := c.current()
		if mod == nil {
			return object.Errorf("defclass: no module declared")
		}
		mod.Classes = append(mod.Classes, cls)
		return object.Nil
	})
}

func makeDefFuncFn(c *collector) *object.Builtin {
	return object.NewBuiltin("deffunc", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("deffunc", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("deffunc: %v", err)
		}
		fd := funcDeclFrom(m)
		if fd.Name == "" {
			return object.Errorf("deffunc: missing name")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		mod := c.current()
		if mod == nil {
			return object.Errorf("deffunc: no module declared")
		}
		mod.Funcs = append(mod.Funcs, fd)
		return object.Nil
	})
}

func makeDefConstFn(c *collector) *object.Builtin {
	return object.NewBuiltin("defconst", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("defconst", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("defconst: %v", err)
		}
		cd := constDeclFrom(m)
		if cd.Name == "" {
			return object.Errorf("defconst: missing name")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		mod := c.current()
		if mod == nil {
			return object.Errorf("defconst: no module declared")
		}
		mod.Consts = append(mod.Consts, cd)
		return object.Nil
	})
}

func funcDeclFrom(m map[string]object.Object) *FuncDecl {
	return &FuncDecl{
		Name:      getString(m, "name"),
		Doc:       getString(m, "doc"),
		Params:    getStrings(m, "params"),
		Returns:   getString(m, "returns"),
		Generator: getBool(m, "generator"),
	}
}

func constDeclFrom(m map[string]object.Object) *ConstDecl {
	cd := &ConstDecl{
		Name: getString(m, "name"),
		Kind: getStringDefault(m, "kind", "none"),
	}
	switch v := m["value"].(type) {
	case *object.String:
		cd.Value = v.Value()
	case *object.Int:
		cd.Value = v.Value()
	case *object.Float:
		cd.Value = v.Value()
	case *object.Bool:
		cd.Value = v.Value()
	}
	return cd
}

// --- map helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	if v := getString(m, key); v != "" {
		return v
	}
	return def
}

func getBool(m map[string]object.Object, key string) bool {
	if b, ok := m[key].(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func getStrings(m map[string]object.Object, key string) []string {
	l, ok := m[key].(*object.List)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range l.Value() {
		if s, ok := item.(*object.String); ok {
			out = append(out, s.Value())
		}
	}
	return out
}

func getMaps(m map[string]object.Object, key string) []map[string]object.Object {
	l, ok := m[key].(*object.List)
	if !ok {
		return nil
	}
	var out []map[string]object.Object
	for _, item := range l.Value() {
		if mm, ok := item.(*object.Map); ok {
			out = append(out, mm.Value())
		}
	}
	return out
}
