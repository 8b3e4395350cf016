package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Portal.BaseURL != "https://jamabandi.nic.in" {
		t.Errorf("unexpected base URL: %s", cfg.Portal.BaseURL)
	}
	if cfg.Portal.CookieName != "jamabandiID" {
		t.Errorf("unexpected cookie name: %s", cfg.Portal.CookieName)
	}
	if cfg.RateLimit.MinDelay != time.Second {
		t.Errorf("expected 1s min delay, got %v", cfg.RateLimit.MinDelay)
	}
	if cfg.Output.SaveInterval != 5 {
		t.Errorf("expected save interval 5, got %d", cfg.Output.SaveInterval)
	}
	if cfg.Workers.Max != 8 {
		t.Errorf("expected max workers 8, got %d", cfg.Workers.Max)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
target:
  district_code: "22"
  village_code: "01234"
range:
  start: 10
  end: 50
workers:
  count: 4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Target.DistrictCode != "22" {
		t.Errorf("expected district 22, got %s", cfg.Target.DistrictCode)
	}
	if cfg.Target.VillageCode != "01234" {
		t.Errorf("expected village 01234, got %s", cfg.Target.VillageCode)
	}
	// Fields absent from the file keep their defaults
	if cfg.Target.TehsilCode != "102" {
		t.Errorf("expected default tehsil 102, got %s", cfg.Target.TehsilCode)
	}
	if cfg.Range.Start != 10 || cfg.Range.End != 50 {
		t.Errorf("unexpected range: %d-%d", cfg.Range.Start, cfg.Range.End)
	}
	if cfg.Workers.Count != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers.Count)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JAMABANDI_SESSION_COOKIE", "abc123")
	t.Setenv("JAMABANDI_WORKERS", "3")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("failed to load env config: %v", err)
	}

	if cfg.Portal.SessionCookie != "abc123" {
		t.Errorf("expected cookie from env, got %q", cfg.Portal.SessionCookie)
	}
	if cfg.Workers.Count != 3 {
		t.Errorf("expected 3 workers from env, got %d", cfg.Workers.Count)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero range start", func(c *Config) { c.Range.Start = 0 }},
		{"inverted range", func(c *Config) { c.Range.Start = 100; c.Range.End = 1 }},
		{"max delay below min", func(c *Config) { c.RateLimit.MaxDelay = c.RateLimit.MinDelay / 2 }},
		{"zero workers", func(c *Config) { c.Workers.Count = 0 }},
		{"too many workers", func(c *Config) { c.Workers.Count = 99 }},
		{"empty downloads dir", func(c *Config) { c.Output.DownloadsDir = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestClampWorkers(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		requested int
		want      int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{5, 5},
		{8, 8},
		{20, 8},
	}

	for _, tt := range tests {
		if got := cfg.ClampWorkers(tt.requested); got != tt.want {
			t.Errorf("ClampWorkers(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestFormURL(t *testing.T) {
	cfg := DefaultConfig()
	want := "https://jamabandi.nic.in/PublicNakal/CreateNewRequest"
	if got := cfg.FormURL(); got != want {
		t.Errorf("FormURL() = %s, want %s", got, want)
	}
}
