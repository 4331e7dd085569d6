package crawler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "start_url: https://example.com/\nmax_pages: 42\nmax_concurrent: 7\nrespect_robots: false\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.StartURL != "https://example.com/" {
		t.Errorf("StartURL = %q", cfg.StartURL)
	}
	if cfg.MaxPages != 42 || cfg.MaxConcurrent != 7 {
		t.Errorf("MaxPages/MaxConcurrent = %d/%d", cfg.MaxPages, cfg.MaxConcurrent)
	}
	if cfg.RespectRobots {
		t.Error("RespectRobots should be overridden to false")
	}
	// Untouched fields keep their defaults.
	if cfg.PoolSize != DefaultConfig().PoolSize {
		t.Errorf("PoolSize = %d", cfg.PoolSize)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{"start_url": "https://example.com/", "max_pages": 9}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.StartURL != "https://example.com/" || cfg.MaxPages != 9 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.StartURL = "https://example.com/"
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty start url", func(c *Config) { c.StartURL = "" }},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }},
		{"max delay below delay", func(c *Config) { c.MaxDelay = c.Delay / 2 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
