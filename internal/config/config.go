// Package config loads the typecore configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
)

// Config is the merged configuration of both command line tools.
type Config struct {
	Log         LogConfig         `yaml:"log" json:"log"`
	Loader      LoaderConfig      `yaml:"loader" json:"loader"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Check       CheckConfig       `yaml:"check" json:"check"`
}

// LogConfig selects the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoaderConfig configures where declaration manifests come from.
type LoaderConfig struct {
	Paths   []string `yaml:"paths" json:"paths"`
	Remote  string   `yaml:"remote" json:"remote"`
	HTTP3   bool     `yaml:"http3" json:"http3"`
	Timeout string   `yaml:"timeout" json:"timeout"`
}

// DiagnosticsConfig limits and escalates reported problems.
type DiagnosticsConfig struct {
	MaxErrors        int  `yaml:"max_errors" json:"max_errors"`
	WarningsAsErrors bool `yaml:"warnings_as_errors" json:"warnings_as_errors"`
}

// CheckConfig controls the batch checker.
type CheckConfig struct {
	Workers int  `yaml:"workers" json:"workers"`
	Watch   bool `yaml:"watch" json:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:         LogConfig{Level: "info", Format: "text"},
		Loader:      LoaderConfig{Timeout: "10s"},
		Diagnostics: DiagnosticsConfig{MaxErrors: 100},
		Check:       CheckConfig{Workers: 4},
	}
}

// Load reads path and merges it over Default. An empty path yields the
// defaults. The format follows the extension; unknown extensions are tried
// as YAML first and then as JSON.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryConfig, "config.read", err, func() *diagnostic.Fragment {
			return diagnostic.NewFragment("config.read", path)
		})
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			cfg = Default()
			err = json.Unmarshal(data, cfg)
		}
	}
	if err != nil {
		return nil, errors.Wrap(errors.CategoryConfig, "config.parse", err, func() *diagnostic.Fragment {
			return diagnostic.NewFragment("config.parse", path)
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, or as JSON for a .json path.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var (
	levels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	formats = map[string]bool{"text": true, "json": true}
)

// Validate rejects unknown log settings, negative limits and malformed
// remote URLs or timeouts.
func (c *Config) Validate() error {
	invalid := func(field string, value any) error {
		return errors.Newf(errors.CategoryConfig, "config.invalid", field, value)
	}
	if !levels[strings.ToLower(c.Log.Level)] {
		return invalid("log.level", c.Log.Level)
	}
	if !formats[strings.ToLower(c.Log.Format)] {
		return invalid("log.format", c.Log.Format)
	}
	if c.Diagnostics.MaxErrors < 0 {
		return invalid("diagnostics.max_errors", c.Diagnostics.MaxErrors)
	}
	if c.Check.Workers < 0 {
		return invalid("check.workers", c.Check.Workers)
	}
	if c.Loader.Remote != "" {
		u, err := url.Parse(c.Loader.Remote)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("loader.remote", c.Loader.Remote)
		}
	}
	if c.Loader.Timeout != "" {
		if d, err := time.ParseDuration(c.Loader.Timeout); err != nil || d < 0 {
			return invalid("loader.timeout", c.Loader.Timeout)
		}
	}
	return nil
}

// Timeout returns the loader timeout, or zero when unset.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.Loader.Timeout)
	return d
}
