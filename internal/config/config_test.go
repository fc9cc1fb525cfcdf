package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orizon-lang/typecore/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Expected info/text, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("Expected 10s, got %s", cfg.Timeout())
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "typecore.yaml", "log:\n  level: debug\nloader:\n  paths: [decls]\n  http3: true\ncheck:\n  workers: 8\n"},
		{"json", "typecore.json", `{"log": {"level": "debug"}, "loader": {"paths": ["decls"], "http3": true}, "check": {"workers": 8}}`},
		{"unknown extension", "typecore.conf", `{"log": {"level": "debug"}, "loader": {"paths": ["decls"], "http3": true}, "check": {"workers": 8}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if cfg.Log.Level != "debug" {
				t.Errorf("Expected debug, got %s", cfg.Log.Level)
			}
			if cfg.Log.Format != "text" {
				t.Errorf("Expected default format text, got %s", cfg.Log.Format)
			}
			if len(cfg.Loader.Paths) != 1 || cfg.Loader.Paths[0] != "decls" {
				t.Errorf("Expected [decls], got %v", cfg.Loader.Paths)
			}
			if !cfg.Loader.HTTP3 {
				t.Errorf("Expected http3 to be enabled")
			}
			if cfg.Check.Workers != 8 {
				t.Errorf("Expected 8 workers, got %d", cfg.Check.Workers)
			}
			if cfg.Diagnostics.MaxErrors != 100 {
				t.Errorf("Expected default max errors 100, got %d", cfg.Diagnostics.MaxErrors)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"negative max errors", func(c *Config) { c.Diagnostics.MaxErrors = -1 }, false},
		{"negative workers", func(c *Config) { c.Check.Workers = -2 }, false},
		{"remote url", func(c *Config) { c.Loader.Remote = "https://registry.example.com/decls" }, true},
		{"remote without scheme", func(c *Config) { c.Loader.Remote = "registry.example.com" }, false},
		{"bad timeout", func(c *Config) { c.Loader.Timeout = "soon" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err == nil) != tt.valid {
				t.Fatalf("Expected valid = %v, got %v", tt.valid, err)
			}
			if err != nil && !errors.HasCategory(err, errors.CategoryConfig) {
				t.Errorf("Expected a CONFIG error, got %v", err)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.HasCategory(err, errors.CategoryConfig) {
		t.Errorf("Expected a CONFIG error for a missing file, got %v", err)
	}
	if _, err := Load(writeFile(t, "bad.yaml", "log: [")); !errors.HasCategory(err, errors.CategoryConfig) {
		t.Errorf("Expected a CONFIG error for malformed YAML, got %v", err)
	}
	if _, err := Load(writeFile(t, "bad.yaml", "log:\n  level: loud\n")); !errors.HasCategory(err, errors.CategoryConfig) {
		t.Errorf("Expected a CONFIG error for an invalid level, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Loader.Remote = "https://registry.example.com"
			path := filepath.Join(t.TempDir(), name)
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got.Loader.Remote != cfg.Loader.Remote {
				t.Errorf("Expected %s, got %s", cfg.Loader.Remote, got.Loader.Remote)
			}
		})
	}
}
