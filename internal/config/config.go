// Package config implements the persisted, YAML-backed settings store
// behind calc's error-mode flags (allow_read/allow_write) and the
// config(...) builtin's knobs.
//
// Uses gopkg.in/yaml.v3 for a plain struct with `yaml:"..."` tags,
// Load/Save pairs, and a sane zero-value via a Default constructor,
// rather than hand-rolling an INI or flag-only reader.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every persisted knob the interactive driver and the
// config(...) builtin can read or mutate.
type Config struct {
	// AllowRead and AllowWrite gate the `read`/`write` directives.
	AllowRead bool `yaml:"allow_read"`
	AllowWrite bool `yaml:"allow_write"`

	// MaxErrors is the error budget handed to the compiler's ErrorList
	// (ErrorList.maxErrors); compilation is not cut short when it is passed.
	MaxErrors int `yaml:"max_errors"`

	// MaxIncludeDepth bounds nested `read` recursion -- a bounded include
	// stack.
	MaxIncludeDepth int `yaml:"max_include_depth"`

	// MaxDim bounds the number of dimensions a `mat` declarator accepts.
	MaxDim int `yaml:"max_dim"`

	// Block-printing knobs, exposed through config("blkbase") and
	// friends.
	BlockBase string `yaml:"blkbase"`
	BlockFmt string `yaml:"blkfmt"`
	BlockMaxPrint int `yaml:"blkmaxprint"`
	BlockVerbose bool `yaml:"blkverbose"`
}

// Default returns the traditional calc defaults (mirrors
// compiler.DefaultLimits plus the read/write permissions calc's `-m`
// mode bits start with).
func Default() *Config {
	return &Config{
		AllowRead: true,
		AllowWrite: true,
		MaxErrors: 20,
		MaxIncludeDepth: 19,
		MaxDim: 4,
		BlockBase: "hex",
		BlockFmt: "normal",
		BlockMaxPrint: 0,
		BlockVerbose: false,
	}
}

// Load reads a YAML config file at path, falling back to Default values
// for any field the file omits. A missing file is not an error; it
// simply yields the defaults, the way a fresh install has no ~/.calcrc.yaml
// yet.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating its parent directory if
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Clone returns a copy of c, so a caller can mutate the copy (e.g. via
// Set) without disturbing the original.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// DefaultPath returns the conventional location of the persisted config
// file, $HOME/.calcrc.yaml, the way a dotfile-configured CLI in the pack
// resolves its settings path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calcrc.yaml"
	}
	return filepath.Join(home, ".calcrc.yaml")
}

// Get reads a config(...) key without mutating it, the one-argument form
// of the config(...) builtin.
func (c *Config) Get(name string) (interface{}, error) {
	switch name {
	case "allow_read":
		return c.AllowRead, nil
	case "allow_write":
		return c.AllowWrite, nil
	case "max_errors":
		return c.MaxErrors, nil
	case "max_include_depth":
		return c.MaxIncludeDepth, nil
	case "max_dim":
		return c.MaxDim, nil
	case "blkbase":
		return c.BlockBase, nil
	case "blkfmt":
		return c.BlockFmt, nil
	case "blkmaxprint":
		return c.BlockMaxPrint, nil
	case "blkverbose":
		return c.BlockVerbose, nil
	default:
		return nil, fmt.Errorf("config: unknown setting %q", name)
	}
}

// Set applies a config(name, value) builtin call to a field named by its
// config(...) key, returning the previous value (as its Go type, like
// Get) the way calc's config builtin returns the old setting. Unknown names
// are an error.
func (c *Config) Set(name string, value interface{}) (old interface{}, err error) {
	switch name {
	case "allow_read":
		old, c.AllowRead = c.AllowRead, toBool(value)
	case "allow_write":
		old, c.AllowWrite = c.AllowWrite, toBool(value)
	case "max_errors":
		old, c.MaxErrors = c.MaxErrors, toInt(value)
	case "max_include_depth":
		old, c.MaxIncludeDepth = c.MaxIncludeDepth, toInt(value)
	case "max_dim":
		old, c.MaxDim = c.MaxDim, toInt(value)
	case "blkbase":
		old, c.BlockBase = c.BlockBase, fmt.Sprint(value)
	case "blkfmt":
		old, c.BlockFmt = c.BlockFmt, fmt.Sprint(value)
	case "blkmaxprint":
		old, c.BlockMaxPrint = c.BlockMaxPrint, toInt(value)
	case "blkverbose":
		old, c.BlockVerbose = c.BlockVerbose, toBool(value)
	default:
		return nil, fmt.Errorf("config: unknown setting %q", name)
	}
	return old, nil
}

func toBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		return t == "true" || t == "1" || t == "yes"
	default:
		return false
	}
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
