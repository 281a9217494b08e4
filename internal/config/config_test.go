package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Engine.BatchSize != 3 {
		t.Errorf("BatchSize = %d, want 3", cfg.Engine.BatchSize)
	}
	if cfg.Engine.BatchIntervalMS != 2000 {
		t.Errorf("BatchIntervalMS = %d, want 2000", cfg.Engine.BatchIntervalMS)
	}
	if cfg.Engine.Metric != "accuracy" {
		t.Errorf("Metric = %q, want accuracy", cfg.Engine.Metric)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Store.Type = %q, want memory", cfg.Store.Type)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("Bus.Type = %q, want memory", cfg.Bus.Type)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `port: 9090
scoring:
  url: http://scorer:6006
  workers: 8
engine:
  batch_size: 5
  batch_interval_ms: 500
store:
  type: redis
  redis_url: redis://cache:6379
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Scoring.URL != "http://scorer:6006" {
		t.Errorf("Scoring.URL = %q", cfg.Scoring.URL)
	}
	if cfg.Scoring.Workers != 8 {
		t.Errorf("Scoring.Workers = %d, want 8", cfg.Scoring.Workers)
	}
	if cfg.Engine.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.Engine.BatchSize)
	}
	if cfg.Store.Type != "redis" {
		t.Errorf("Store.Type = %q, want redis", cfg.Store.Type)
	}
	// File did not set the host; the default survives.
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GRID_PORT", "7070")
	t.Setenv("GRID_BATCH_SIZE", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want env override 7070", cfg.Port)
	}
	if cfg.Engine.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want env override 10", cfg.Engine.BatchSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Port = -1 }, true},
		{"empty scoring url", func(c *Config) { c.Scoring.URL = "" }, true},
		{"zero batch size", func(c *Config) { c.Engine.BatchSize = 0 }, true},
		{"negative interval", func(c *Config) { c.Engine.BatchIntervalMS = -5 }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "postgres" }, true},
		{"unknown bus", func(c *Config) { c.Bus.Type = "nats" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() of missing file succeeded, want error")
	}
}
