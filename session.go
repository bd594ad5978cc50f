package taproot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jward/taproot/internal/cache"
	"github.com/jward/taproot/internal/pyparse"
	"github.com/jward/taproot/internal/stubrt"
	"github.com/jward/taproot/stubs"
)

// ImportHook resolves a module name after the search path and native stubs
// have both missed. Hooks run in registration order; the first one to return
// a module without error wins.
type ImportHook func(modname string) (*Module, error)

// moduleEntry is one registry slot: exactly one live tree or one recorded
// failure per canonical name.
type moduleEntry struct {
	mod *Module
	err error
}

// Session owns the module registry and the inference cache. Every tree built
// through a session points back to it, which is how name lookup reaches
// builtins and how import inference reaches sibling modules. Methods are safe
// for concurrent use.
type Session struct {
	mu       sync.Mutex
	registry map[string]*moduleEntry
	byPath   map[string]string // cleaned source path -> canonical name

	searchPath  []string
	grammarName string
	grammar     pyparse.Grammar
	capacity    int
	limits      Limits
	logger      *slog.Logger
	stubsFS     fs.FS
	hooks       []ImportHook

	inferCache *cache.Cache[inferKey, []Value]
	builtins   *Module
}

// Option configures a Session.
type Option func(*Session)

// WithSearchPath appends directories consulted when resolving dotted module
// names to source files and package directories.
func WithSearchPath(dirs ...string) Option {
	return func(s *Session) {
		s.searchPath = append(s.searchPath, dirs...)
	}
}

// WithGrammar selects the grammar revision for parsing, "python3" (default)
// or "python2". Unknown names fail NewSession.
func WithGrammar(name string) Option {
	return func(s *Session) {
		s.grammarName = name
	}
}

// WithLogger installs a diagnostic logger. Build, invalidation, and watch
// events are reported at debug level. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheCapacity bounds the session's inference cache.
func WithCacheCapacity(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLimits sets the per-request inference budgets. Zero fields keep their
// defaults.
func WithLimits(l Limits) Option {
	return func(s *Session) {
		s.limits = l
	}
}

// WithStubsFS loads native-module stub scripts from the given filesystem
// instead of the embedded ones. The filesystem must hold <modname>.risor
// files at its root, a builtins.risor included.
func WithStubsFS(fsys fs.FS) Option {
	return func(s *Session) {
		if fsys != nil {
			s.stubsFS = fsys
		}
	}
}

// WithImportHook registers a resolver of last resort for module names the
// search path and stubs cannot satisfy.
func WithImportHook(hook ImportHook) Option {
	return func(s *Session) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// WithConfig applies a loaded configuration. Zero-valued fields leave the
// corresponding defaults untouched.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		if len(cfg.SearchPath) > 0 {
			s.searchPath = append(s.searchPath, cfg.SearchPath...)
		}
		if cfg.Grammar != "" {
			s.grammarName = cfg.Grammar
		}
		if cfg.CacheCapacity > 0 {
			s.capacity = cfg.CacheCapacity
		}
		if cfg.MaxDepth > 0 {
			s.limits.MaxDepth = cfg.MaxDepth
		}
		if cfg.MaxCandidates > 0 {
			s.limits.MaxCandidates = cfg.MaxCandidates
		}
	}
}

// NewSession creates a session and bootstraps the builtins module from its
// stub script, pinning it in the registry.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		registry: make(map[string]*moduleEntry),
		byPath:   make(map[string]string),
		capacity: cache.DefaultCapacity,
		logger:   slog.New(slog.DiscardHandler),
		stubsFS:  stubs.FS,
	}
	for _, opt := range opts {
		opt(s)
	}
	g, err := pyparse.ParseGrammar(s.grammarName)
	if err != nil {
		return nil, fmt.Errorf("taproot: %w", err)
	}
	s.grammar = g
	s.limits = s.limits.orDefaults()
	s.inferCache = cache.New[inferKey, []Value](s.capacity)

	b, err := s.BuildNative("builtins")
	if err != nil {
		cache.Unregister(s.inferCache)
		return nil, fmt.Errorf("taproot: bootstrap builtins: %w", err)
	}
	s.builtins = b
	return s, nil
}

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the lazily created package-default session, for call sites
// that do not manage their own.
func Default() *Session {
	defaultOnce.Do(func() {
		s, err := NewSession()
		if err != nil {
			panic(fmt.Sprintf("taproot: default session: %v", err))
		}
		defaultSession = s
	})
	return defaultSession
}

// Close drops the session's inference cache from the global cache registry.
// The session must not be used afterwards.
func (s *Session) Close() {
	cache.Unregister(s.inferCache)
}

// Builtins returns the synthesized builtins module every lookup chain falls
// back to.
func (s *Session) Builtins() *Module { return s.builtins }

func (s *Session) newContext() *Context { return newContext(s.limits, false) }

// BuildSource builds a module tree from source bytes and registers it under
// modname, replacing any previous entry. path is recorded on the module and
// may be empty. A failed build registers nothing, so an earlier tree under
// the same name stays live.
func (s *Session) BuildSource(src []byte, modname, path string) (*Module, error) {
	mod, err := s.build(src, modname, path, false)
	if err != nil {
		return nil, err
	}
	return s.record(modname, mod, nil, true)
}

// BuildFile reads and builds the module at path. A directory containing
// __init__.py builds as a package. An empty modname is derived from the path.
// The result replaces any previous entry under the name.
func (s *Session) BuildFile(path, modname string) (*Module, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, &BuildError{Modname: modname, Path: path, Err: err}
	}
	if modname == "" {
		modname = moduleNameFor(path, st.IsDir())
	}
	var mod *Module
	if st.IsDir() {
		mod, err = s.buildPackage(path, modname)
	} else {
		mod, err = s.buildAt(path, modname)
	}
	if err != nil {
		return nil, err
	}
	return s.record(modname, mod, nil, true)
}

// BuildModule resolves a dotted module name: the registry first, then the
// search path (package directories shadow same-named files), then native
// stubs, then import hooks. Both outcomes are recorded, so repeat requests
// return the identical tree and failures are not silently retried.
func (s *Session) BuildModule(modname string) (*Module, error) {
	if modname == "" {
		return nil, &ImportError{Err: errors.New("empty module name")}
	}
	if e, ok := s.lookup(modname); ok {
		return e.mod, e.err
	}
	mod, err := s.loadModule(modname)
	return s.record(modname, mod, err, false)
}

// BuildNative synthesizes a module from its stub script, bypassing the
// search path. Extra modules declared by the same script are registered as
// they are found.
func (s *Session) BuildNative(modname string) (*Module, error) {
	if e, ok := s.lookup(modname); ok {
		return e.mod, e.err
	}
	mod, err := s.loadNative(modname)
	return s.record(modname, mod, err, false)
}

// Invalidate drops the registry entry for modname so the next request
// rebuilds it. The builtins module is pinned and never dropped. Cached
// inference results are discarded wholesale: other modules may hold inferred
// references into the dropped tree.
func (s *Session) Invalidate(modname string) {
	if modname == "builtins" {
		return
	}
	s.mu.Lock()
	e, ok := s.registry[modname]
	if ok {
		delete(s.registry, modname)
		if e.mod != nil && e.mod.Path != "" {
			delete(s.byPath, filepath.Clean(e.mod.Path))
		}
	}
	s.mu.Unlock()
	if ok {
		s.inferCache.Clear()
		s.logger.Debug("module invalidated", "module", modname)
	}
}

// Reset drops every registry entry except the pinned builtins module and
// clears every registered cache.
func (s *Session) Reset() {
	s.mu.Lock()
	pinned := s.registry["builtins"]
	s.registry = make(map[string]*moduleEntry)
	s.byPath = make(map[string]string)
	if pinned != nil {
		s.registry["builtins"] = pinned
	}
	s.mu.Unlock()
	cache.ClearAll()
	s.logger.Debug("session reset")
}

// invalidatePath drops the entry whose backing file is path, if any.
func (s *Session) invalidatePath(path string) {
	s.mu.Lock()
	name, ok := s.byPath[filepath.Clean(path)]
	s.mu.Unlock()
	if ok {
		s.Invalidate(name)
	}
}

func (s *Session) lookup(modname string) (*moduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.registry[modname]
	return e, ok
}

// record stores a build outcome under name. When replace is false an
// existing entry wins, which keeps repeat requests pointer-identical even
// when two goroutines race to build the same module.
func (s *Session) record(name string, mod *Module, err error, replace bool) (*Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !replace {
		if e, ok := s.registry[name]; ok {
			return e.mod, e.err
		}
	}
	s.registry[name] = &moduleEntry{mod: mod, err: err}
	if mod != nil && mod.Path != "" {
		s.byPath[filepath.Clean(mod.Path)] = name
	}
	return mod, err
}

func (s *Session) build(src []byte, modname, path string, pkg bool) (*Module, error) {
	tree, err := pyparse.Parse(context.Background(), src, s.grammar)
	if err != nil {
		return nil, &BuildError{Modname: modname, Path: path, Err: err}
	}
	mod, err := buildModule(tree, modname, path, pkg, s)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("module built", "module", modname, "path", path, "package", pkg)
	return mod, nil
}

func (s *Session) buildAt(path, modname string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &BuildError{Modname: modname, Path: path, Err: err}
	}
	return s.build(src, modname, path, false)
}

// buildPackage builds a package directory: the initializer is the module
// body, and PackageEntries lists the directory's submodule short names.
func (s *Session) buildPackage(dir, modname string) (*Module, error) {
	init := filepath.Join(dir, "__init__.py")
	src, err := os.ReadFile(init)
	if err != nil {
		return nil, &BuildError{Modname: modname, Path: dir, Err: err}
	}
	entries, err := packageEntries(dir)
	if err != nil {
		return nil, &BuildError{Modname: modname, Path: dir, Err: err}
	}
	mod, err := s.build(src, modname, init, true)
	if err != nil {
		return nil, err
	}
	mod.PackageEntries = entries
	return mod, nil
}

// loadModule resolves a name that is not yet in the registry.
func (s *Session) loadModule(modname string) (*Module, error) {
	if path, pkg, ok := s.resolveSource(modname); ok {
		if pkg {
			return s.buildPackage(path, modname)
		}
		return s.buildAt(path, modname)
	}
	if s.stubExists(modname) {
		return s.loadNative(modname)
	}
	for _, hook := range s.hooks {
		if mod, err := hook(modname); err == nil && mod != nil {
			return mod, nil
		}
	}
	s.logger.Debug("import failed", "module", modname)
	return nil, &ImportError{Modname: modname}
}

// resolveSource maps a dotted name to a location on the search path. Package
// directories take precedence over same-named files, matching import
// semantics.
func (s *Session) resolveSource(modname string) (path string, pkg bool, ok bool) {
	rel := filepath.FromSlash(strings.ReplaceAll(modname, ".", "/"))
	for _, dir := range s.searchPath {
		pkgdir := filepath.Join(dir, rel)
		if fileExists(filepath.Join(pkgdir, "__init__.py")) {
			return pkgdir, true, true
		}
		if file := pkgdir + ".py"; fileExists(file) {
			return file, false, true
		}
	}
	return "", false, false
}

func (s *Session) stubExists(modname string) bool {
	f, err := s.stubsFS.Open(modname + ".risor")
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// loadNative evaluates the stub script for modname and synthesizes trees for
// every module it declares.
func (s *Session) loadNative(modname string) (*Module, error) {
	rt := stubrt.New(stubrt.WithFS(s.stubsFS))
	decls, err := rt.EvalScript(context.Background(), modname+".risor")
	if err != nil {
		return nil, &BuildError{Modname: modname, Err: err}
	}
	var want *Module
	for _, decl := range decls {
		mod := synthesizeModule(decl, s)
		if decl.Name == modname {
			want = mod
			continue
		}
		s.record(decl.Name, mod, nil, false)
	}
	if want == nil {
		return nil, &ImportError{
			Modname: modname,
			Err:     fmt.Errorf("stub script declares no module %q", modname),
		}
	}
	s.logger.Debug("native module synthesized", "module", modname)
	return want, nil
}

// packageEntries lists a package directory's submodule short names in
// lexicographic order: .py files by stem, subdirectories that are themselves
// packages, the initializer included.
func packageEntries(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() {
			if fileExists(filepath.Join(dir, name, "__init__.py")) {
				names = append(names, name)
			}
			continue
		}
		if strings.HasSuffix(name, ".py") {
			names = append(names, strings.TrimSuffix(name, ".py"))
		}
	}
	slices.Sort(names)
	return names, nil
}

func moduleNameFor(path string, isDir bool) string {
	name := filepath.Base(path)
	if !isDir {
		name = strings.TrimSuffix(name, ".py")
	}
	return name
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
