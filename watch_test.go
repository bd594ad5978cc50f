package taproot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_RewriteInvalidatesEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.py")
	writeFile(t, path, "x = 1\n")

	sess := newTestSession(t, WithSearchPath(dir))
	m1, err := sess.BuildModule("w")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sess.Watch(ctx, dir))

	writeFile(t, path, "x = 2\n")

	assert.Eventually(t, func() bool {
		m2, err := sess.BuildModule("w")
		return err == nil && m2 != m1
	}, 3*time.Second, 25*time.Millisecond, "the rewrite should force a rebuild")
}

func TestWatch_RemoveDropsEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.py")
	writeFile(t, path, "x = 1\n")

	sess := newTestSession(t, WithSearchPath(dir))
	_, err := sess.BuildModule("gone")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sess.Watch(ctx, dir))

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		_, err := sess.BuildModule("gone")
		return err != nil
	}, 3*time.Second, 25*time.Millisecond, "a removed file leaves nothing to rebuild")
}

func TestWatch_NonPythonFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.py")
	writeFile(t, path, "x = 1\n")

	sess := newTestSession(t, WithSearchPath(dir))
	m1, err := sess.BuildModule("keep")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sess.Watch(ctx, dir))

	writeFile(t, filepath.Join(dir, "notes.txt"), "irrelevant")
	time.Sleep(3 * watchDebounce)

	m2, err := sess.BuildModule("keep")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func TestWatch_CancelStopsInvalidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frozen.py")
	writeFile(t, path, "x = 1\n")

	sess := newTestSession(t, WithSearchPath(dir))
	m1, err := sess.BuildModule("frozen")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sess.Watch(ctx, dir))
	cancel()
	time.Sleep(2 * watchDebounce)

	writeFile(t, path, "x = 2\n")
	time.Sleep(3 * watchDebounce)

	m2, err := sess.BuildModule("frozen")
	require.NoError(t, err)
	assert.Same(t, m1, m2, "a cancelled watcher must not invalidate")
}

func TestWatch_MissingDirFails(t *testing.T) {
	sess := newTestSession(t)
	err := sess.Watch(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
