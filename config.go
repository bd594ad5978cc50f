package taproot

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jward/taproot/internal/cache"
)

// Config carries the session settings loadable from a YAML file and the
// environment. Apply it with WithConfig.
type Config struct {
	SearchPath    []string `koanf:"search_path"`
	Grammar       string   `koanf:"grammar"`
	CacheCapacity int      `koanf:"cache_capacity"`
	MaxDepth      int      `koanf:"max_depth"`
	MaxCandidates int      `koanf:"max_candidates"`
}

// LoadConfig resolves configuration in precedence order: built-in defaults,
// then the YAML file at path (skipped when path is empty), then TAPROOT_
// environment variables. TAPROOT_GRAMMAR=python2 sets grammar;
// TAPROOT_SEARCH_PATH splits like PATH.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"grammar":        "python3",
		"cache_capacity": cache.DefaultCapacity,
		"max_depth":      DefaultMaxDepth,
		"max_candidates": DefaultMaxCandidates,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Config{}, fmt.Errorf("taproot: config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("taproot: config file %s: %w", path, err)
		}
	}

	// TAPROOT_MAX_DEPTH -> max_depth
	if err := k.Load(env.ProviderWithValue("TAPROOT_", ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, "TAPROOT_"))
		if key == "search_path" {
			return key, strings.Split(value, string(os.PathListSeparator))
		}
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("taproot: config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("taproot: config unmarshal: %w", err)
	}
	return cfg, nil
}
