package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Settings is the project configuration read from alla.yaml or alla.toml.
type Settings struct {
	// MaxCallDepth bounds nested function activations. Zero means the default.
	MaxCallDepth int `yaml:"max_call_depth" toml:"max_call_depth"`

	// Stats prints per-stage timings and program sizes after a run.
	Stats bool `yaml:"stats" toml:"stats"`

	// Disasm prints the disassembled program before running it.
	Disasm bool `yaml:"disasm" toml:"disasm"`

	// Color is one of "auto", "always" or "never".
	Color string `yaml:"color" toml:"color"`

	Log   LogSettings   `yaml:"log" toml:"log"`
	Cache CacheSettings `yaml:"cache" toml:"cache"`

	// Dir is the directory containing the settings file (set at load time).
	Dir string `yaml:"-" toml:"-"`

	// Path is the settings file that was loaded, empty for defaults.
	Path string `yaml:"-" toml:"-"`
}

type LogSettings struct {
	// Verbosity follows commonlog: 0 is errors only, higher is chattier.
	Verbosity int `yaml:"verbosity" toml:"verbosity"`

	// File redirects log output; stderr when empty.
	File string `yaml:"file" toml:"file"`
}

type CacheSettings struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Path of the SQLite database. Relative paths resolve against Dir.
	Path string `yaml:"path" toml:"path"`
}

// Default returns the settings used when no file is found.
func Default() *Settings {
	return &Settings{
		MaxCallDepth: DefaultMaxCallDepth,
		Color:        "auto",
		Cache: CacheSettings{
			Path: filepath.Join(".alla", "cache.db"),
		},
	}
}

// Load parses the settings file at path. The format is chosen by extension.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	s := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported settings format: %s", path)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.Path = path
	s.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return s, nil
}

// FindAndLoad walks up from startDir to find a settings file and loads it.
// Defaults are returned when nothing is found.
func FindAndLoad(startDir string) (*Settings, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	dir := start

	for {
		for _, name := range SettingsFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return Load(candidate)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	s := Default()
	s.Dir = start
	return s, nil
}

// Validate checks field values and fills in zero defaults.
func (s *Settings) Validate() error {
	if s.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", s.MaxCallDepth)
	}
	if s.MaxCallDepth == 0 {
		s.MaxCallDepth = DefaultMaxCallDepth
	}
	switch s.Color {
	case "":
		s.Color = "auto"
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", s.Color)
	}
	return nil
}

// CachePath returns the cache database path resolved against Dir.
func (s *Settings) CachePath() string {
	if s.Cache.Path == "" || filepath.IsAbs(s.Cache.Path) || s.Dir == "" {
		return s.Cache.Path
	}
	return filepath.Join(s.Dir, s.Cache.Path)
}
