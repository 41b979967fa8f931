// Package config loads the project configuration file spec.md §4.6
// describes: which files to transform, and which bundling mode to run
// under. Parsing accepts JSONC (comments and trailing commas) as well as
// plain YAML, since severed's teacher corpus favors both depending on the
// tool, and a project config is hand-edited often enough that comments are
// worth supporting.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Mode mirrors hostplugin.Mode without importing it, so config stays
// leaf-level and dependency-free of the pipeline packages.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// Config is severed's project configuration (spec.md §4.6).
type Config struct {
	// Include/Exclude are doublestar glob patterns, evaluated relative to
	// the config file's directory.
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Mode selects push or pull asset delivery. Defaults to ModePush.
	Mode Mode `yaml:"mode" json:"mode"`

	// CacheSize overrides cache.DefaultSize when positive.
	CacheSize int `yaml:"cacheSize" json:"cacheSize"`
}

// Load reads a config file at path, detecting JSON(C) vs. YAML by
// extension. ".json"/".jsonc" go through tidwall/jsonc to strip comments
// and trailing commas before standard unmarshaling; anything else is
// parsed as YAML.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	cfg := &Config{Mode: ModePush}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".jsonc":
		clean := jsonc.ToJSON(raw)
		if err := yaml.Unmarshal(clean, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %q: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %q: %w", path, err)
		}
	}

	if cfg.Mode == "" {
		cfg.Mode = ModePush
	}
	return cfg, nil
}

// Matches reports whether relPath (slash-separated, relative to the
// config's base directory) is selected by Include and not vetoed by
// Exclude. An empty Include list matches every path not excluded.
func (c *Config) Matches(relPath string) (bool, error) {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range c.Exclude {
		ok, err := doublestar.Match(pattern, relPath)
		if err != nil {
			return false, fmt.Errorf("config: bad exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return false, nil
		}
	}

	if len(c.Include) == 0 {
		return true, nil
	}
	for _, pattern := range c.Include {
		ok, err := doublestar.Match(pattern, relPath)
		if err != nil {
			return false, fmt.Errorf("config: bad include pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
