package taproot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches filesystem events before invalidating; an editor
// save produces a burst of writes for one file.
const watchDebounce = 100 * time.Millisecond

// Watch invalidates registry entries whose backing .py files change under
// any of dirs, recursively. Setup happens synchronously; the event loop runs
// in its own goroutine until ctx is done. Directories created later join the
// watch as they appear.
func (s *Session) Watch(ctx context.Context, dirs ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("taproot: watch: %w", err)
	}
	for _, dir := range dirs {
		if err := addWatchTree(w, dir); err != nil {
			w.Close()
			return fmt.Errorf("taproot: watch %s: %w", dir, err)
		}
	}
	s.logger.Debug("watching", "dirs", dirs)
	go s.watchLoop(ctx, w)
	return nil
}

// addWatchTree registers root and every non-pruned subdirectory.
func addWatchTree(w *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// watchLoop drains events until ctx is done. Changed paths collect into a
// pending set; the debounce timer arms on the first event of a batch and
// invalidates the whole batch when it fires.
func (s *Session) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					name := filepath.Base(ev.Name)
					if !strings.HasPrefix(name, ".") && !skipDirs[name] {
						_ = w.Add(ev.Name)
					}
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".py") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(watchDebounce)
			}
			pending[ev.Name] = struct{}{}
		case <-timer.C:
			for path := range pending {
				s.invalidatePath(path)
			}
			clear(pending)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Debug("watch error", "err", err)
		}
	}
}
