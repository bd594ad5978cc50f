package taproot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/taproot/internal/cache"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Grammar)
	assert.Equal(t, cache.DefaultCapacity, cfg.CacheCapacity)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DefaultMaxCandidates, cfg.MaxCandidates)
	assert.Empty(t, cfg.SearchPath)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taproot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`grammar: python2
cache_capacity: 64
search_path:
  - /srv/py/lib
  - /srv/py/vendor
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "python2", cfg.Grammar)
	assert.Equal(t, 64, cfg.CacheCapacity)
	assert.Equal(t, []string{"/srv/py/lib", "/srv/py/vendor"}, cfg.SearchPath)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth, "untouched keys keep their defaults")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taproot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grammar: python2\n"), 0o644))

	t.Setenv("TAPROOT_GRAMMAR", "python3")
	t.Setenv("TAPROOT_MAX_DEPTH", "7")
	sep := string(os.PathListSeparator)
	t.Setenv("TAPROOT_SEARCH_PATH", "/x"+sep+"/y")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Grammar)
	assert.Equal(t, 7, cfg.MaxDepth)
	assert.Equal(t, []string{"/x", "/y"}, cfg.SearchPath)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestConfig_AppliesToSession(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cfged.py"), "x = 1\n")

	sess := newTestSession(t, WithConfig(Config{
		SearchPath: []string{dir},
		Grammar:    "python2",
	}))

	mod, err := sess.BuildModule("cfged")
	require.NoError(t, err)
	assert.Equal(t, "cfged", mod.Name)

	// the configured grammar accepts print statements
	legacy := buildSource(t, sess, "legacy", "print 1\n")
	assert.Equal(t, "legacy", legacy.Name)
}

func TestConfig_LimitsFlowIntoInference(t *testing.T) {
	sess := newTestSession(t, WithConfig(Config{MaxCandidates: 2}))
	mod := buildSource(t, sess, "demo", `a = 1
b = a + a
c = b + b
`)

	vals := inferLocal(t, mod, "c")
	require.NotEmpty(t, vals)
	for _, v := range vals {
		assert.True(t, IsUninferable(v))
	}
}
