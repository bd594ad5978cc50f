package taproot

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// buildItem holds everything a parallel build worker needs, and afterwards
// its outcome for the serial commit phase.
type buildItem struct {
	path    string
	modname string
	pkg     bool

	mod *Module
	err error
}

// skipDirs are directory names excluded from discovery and watching.
var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"vendor":       true,
}

// BuildDir builds every Python module under root in three phases:
//
//	Phase A (serial):   walk root, derive dotted names.
//	Phase B (parallel): parse and build, NumCPU workers.
//	Phase C (serial):   commit outcomes to the registry in discovery order.
//
// Each build owns its parser, so workers share no tree-sitter state. A
// failed module is recorded in the registry like any other build failure and
// does not stop the rest; failures are reported together at the end. When
// root itself is a package directory its name prefixes every entry.
func (s *Session) BuildDir(ctx context.Context, root string) error {
	items, err := s.discoverModules(root)
	if err != nil {
		return fmt.Errorf("taproot: discover %s: %w", root, err)
	}
	if len(items) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range items {
		item := &items[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if item.pkg {
				item.mod, item.err = s.buildPackage(item.path, item.modname)
			} else {
				item.mod, item.err = s.buildAt(item.path, item.modname)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("taproot: build %s: %w", root, err)
	}

	var errs []error
	for i := range items {
		item := &items[i]
		s.record(item.modname, item.mod, item.err, true)
		if item.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", item.modname, item.err))
		}
	}
	s.logger.Debug("directory built", "root", root, "modules", len(items), "failed", len(errs))
	if len(errs) > 0 {
		return fmt.Errorf("taproot: building %s had %d error(s): %w", root, len(errs), errs[0])
	}
	return nil
}

// discoverModules walks root collecting build items: package directories
// (those with an __init__.py) and plain .py files. Hidden directories and
// skipDirs are pruned.
func (s *Session) discoverModules(root string) ([]buildItem, error) {
	root = filepath.Clean(root)
	prefix := ""
	if fileExists(filepath.Join(root, "__init__.py")) {
		prefix = filepath.Base(root)
	}

	var items []buildItem
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			if fileExists(filepath.Join(path, "__init__.py")) {
				items = append(items, buildItem{
					path:    path,
					modname: dottedName(root, prefix, path, true),
					pkg:     true,
				})
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") || d.Name() == "__init__.py" {
			return nil
		}
		items = append(items, buildItem{
			path:    path,
			modname: dottedName(root, prefix, path, false),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// dottedName converts a path under root into a canonical dotted module name.
func dottedName(root, prefix, path string, isDir bool) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return prefix
	}
	if !isDir {
		rel = strings.TrimSuffix(rel, ".py")
	}
	name := strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
	if prefix != "" {
		return prefix + "." + name
	}
	return name
}
