package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildConfig_FileLayersUnderFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seolens.yaml")
	data := []byte("max_pages: 42\nmax_concurrent: 7\noutput_dir: /data/crawls\ndelay: 3s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := crawlCmd()
	if err := cmd.Flags().Parse([]string{"--concurrency", "9"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	flagConfig = path
	defer func() { flagConfig = "" }()

	cfg, err := buildConfig(cmd, "https://example.com/", false)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if cfg.MaxConcurrent != 9 {
		t.Errorf("MaxConcurrent = %d, want 9 from the flag", cfg.MaxConcurrent)
	}
	if cfg.MaxPages != 42 {
		t.Errorf("MaxPages = %d, want 42 from the config file", cfg.MaxPages)
	}
	if cfg.Delay != 3*time.Second {
		t.Errorf("Delay = %v, want 3s from the config file", cfg.Delay)
	}
	if cfg.OutputDir != "/data/crawls" {
		t.Errorf("OutputDir = %q, want the config file value", cfg.OutputDir)
	}
	if cfg.StartURL != "https://example.com/" {
		t.Errorf("StartURL = %q, want the seed argument", cfg.StartURL)
	}
}

func TestBuildConfig_DefaultsWithoutFile(t *testing.T) {
	cmd := crawlCmd()
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flagConfig = ""

	cfg, err := buildConfig(cmd, "https://example.com/", false)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if cfg.MaxPages != 100 || cfg.MaxConcurrent != 3 {
		t.Errorf("defaults not applied: MaxPages=%d MaxConcurrent=%d", cfg.MaxPages, cfg.MaxConcurrent)
	}
	if cfg.OutputDir == "" {
		t.Error("OutputDir should fall back to the flag default")
	}
}
