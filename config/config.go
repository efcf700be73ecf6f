// Package config handles rungen.toml configuration.
package config

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// FileName is the configuration file looked for by Load and FindAndLoad.
const FileName = "rungen.toml"

// Config represents a rungen.toml configuration.
type Config struct {
	Pipeline Pipeline `toml:"pipeline"`
	Log      Log      `toml:"log"`

	// Dir is the directory containing the rungen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Pipeline configures code generation and the compile pool.
type Pipeline struct {
	Package string `toml:"package"`
	Workers int    `toml:"workers"` // 0 = unbounded
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"` // empty = stderr
}

// Default returns the configuration used when no rungen.toml exists.
func Default() *Config {
	return &Config{
		Pipeline: Pipeline{Package: "gen"},
	}
}

// Load parses a rungen.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if c.Pipeline.Package == "" {
		c.Pipeline.Package = "gen"
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a rungen.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if !token.IsIdentifier(c.Pipeline.Package) {
		errs = append(errs, fmt.Errorf("pipeline.package %q is not a Go identifier", c.Pipeline.Package))
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers))
	}
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 2 {
		errs = append(errs, fmt.Errorf("log.verbosity %d out of range [-4, 2]", c.Log.Verbosity))
	}
	return errors.Join(errs...)
}

// LogPath returns the absolute log file path, or nil for stderr.
func (c *Config) LogPath() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}

// ConfigureLogging applies the [log] section to the process-wide backend.
func (c *Config) ConfigureLogging() {
	commonlog.Configure(c.Log.Verbosity, c.LogPath())
}
