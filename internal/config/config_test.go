package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"negative delay", func(c *Config) { c.Engine.PolitenessDelay = -time.Second }, "politeness_delay"},
		{"zero start page", func(c *Config) { c.Engine.StartPage = 0 }, "start_page"},
		{"bad granularity", func(c *Config) { c.Engine.Granularity = "page" }, "granularity"},
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "curl" }, "fetcher.type"},
		{"bad base url", func(c *Config) { c.Source.BaseURL = "ftp://example.com" }, "source.base_url"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "parquet" }, "storage.type"},
		{"mongo without uri", func(c *Config) { c.Storage.Type = "mongodb" }, "mongo_uri"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }, "metrics.port"},
		{"bad api port", func(c *Config) { c.API.Enabled = true; c.API.Port = 70000 }, "api.port"},
		{"api port clash", func(c *Config) { c.API.Enabled = true; c.Metrics.Enabled = true; c.API.Port = c.Metrics.Port }, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q should mention %q", err, tt.substr)
			}
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cruisecrawl.yaml")
	content := `
engine:
  politeness_delay: 700ms
  granularity: ship
storage:
  output_path: /tmp/out.csv
  deduplicate: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRUISECRAWL_ENGINE_MAX_PAGES", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Engine.PolitenessDelay != 700*time.Millisecond {
		t.Errorf("politeness_delay = %s, want 700ms", cfg.Engine.PolitenessDelay)
	}
	if cfg.Engine.Granularity != GranularityShip {
		t.Errorf("granularity = %q, want ship", cfg.Engine.Granularity)
	}
	if !cfg.Storage.Deduplicate {
		t.Error("deduplicate should be true")
	}
	if cfg.Engine.MaxPages != 4 {
		t.Errorf("max_pages from env = %d, want 4", cfg.Engine.MaxPages)
	}
	if cfg.Engine.ShipsPerPage != 15 {
		t.Errorf("ships_per_page default = %d, want 15", cfg.Engine.ShipsPerPage)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
