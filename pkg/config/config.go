package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Jamabandi scraper
type Config struct {
	// Portal endpoints and HTTP behavior
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Target selection (district/tehsil/village/period)
	Target TargetConfig `yaml:"target" json:"target"`

	// Khewat range to download
	Range RangeConfig `yaml:"range" json:"range"`

	// Adaptive rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behavior for failed downloads
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Worker configuration
	Workers WorkerConfig `yaml:"workers" json:"workers"`

	// Output paths
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PortalConfig holds the portal endpoints and HTTP settings
type PortalConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	FormPath      string        `yaml:"form_path" json:"form_path"`
	CookieName    string        `yaml:"cookie_name" json:"cookie_name"`
	SessionCookie string        `yaml:"session_cookie" json:"session_cookie"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	PostbackSleep time.Duration `yaml:"postback_sleep" json:"postback_sleep"`
}

// TargetConfig identifies the administrative unit being downloaded.
// Recorded in the progress file for provenance.
type TargetConfig struct {
	DistrictCode string `yaml:"district_code" json:"district_code"`
	TehsilCode   string `yaml:"tehsil_code" json:"tehsil_code"`
	VillageCode  string `yaml:"village_code" json:"village_code"`
	Period       string `yaml:"period" json:"period"`
}

// RangeConfig is the inclusive khewat number range
type RangeConfig struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// RateLimitConfig holds the adaptive limiter bounds
type RateLimitConfig struct {
	MinDelay   time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	WindowSize int           `yaml:"window_size" json:"window_size"`
}

// RetryConfig holds retry behavior for failed downloads
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// WorkerConfig holds concurrency settings
type WorkerConfig struct {
	Count int `yaml:"count" json:"count"`
	Max   int `yaml:"max" json:"max"`
}

// OutputConfig holds output path configuration
type OutputConfig struct {
	DownloadsDir string `yaml:"downloads_dir" json:"downloads_dir"`
	ProgressFile string `yaml:"progress_file" json:"progress_file"`
	SaveInterval int    `yaml:"save_interval" json:"save_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:       "https://jamabandi.nic.in",
			FormPath:      "/PublicNakal/CreateNewRequest",
			CookieName:    "jamabandiID",
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:147.0) Gecko/20100101 Firefox/147.0",
			Timeout:       30 * time.Second,
			PostbackSleep: 250 * time.Millisecond,
		},
		Target: TargetConfig{
			DistrictCode: "17",
			TehsilCode:   "102",
			VillageCode:  "02556",
			Period:       "2022-2023",
		},
		Range: RangeConfig{
			Start: 1,
			End:   100,
		},
		RateLimit: RateLimitConfig{
			MinDelay:   1 * time.Second,
			MaxDelay:   5 * time.Second,
			WindowSize: 10,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			RetryDelay: 5 * time.Second,
		},
		Workers: WorkerConfig{
			Count: 1,
			Max:   8,
		},
		Output: OutputConfig{
			DownloadsDir: "downloads",
			ProgressFile: "progress.json",
			SaveInterval: 5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    10,
			MaxBackups: 5,
		},
	}
}

// Load builds a configuration from defaults, an optional YAML file,
// and environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// Load .env file if present (ignore errors - file is optional)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if cookie := os.Getenv("JAMABANDI_SESSION_COOKIE"); cookie != "" {
		c.Portal.SessionCookie = cookie
	}
	if baseURL := os.Getenv("JAMABANDI_BASE_URL"); baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if dir := os.Getenv("JAMABANDI_DOWNLOADS_DIR"); dir != "" {
		c.Output.DownloadsDir = dir
	}
	if workers := os.Getenv("JAMABANDI_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Workers.Count = val
		}
	}
	if level := os.Getenv("JAMABANDI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"config.yaml",
		".jamabandi.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "jamabandi", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".jamabandi.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	}
	if c.Portal.Timeout <= 0 {
		errs = append(errs, errors.New("portal timeout must be positive"))
	}

	if c.Range.Start < 1 {
		errs = append(errs, errors.New("range start must be at least 1"))
	}
	if c.Range.End < c.Range.Start {
		errs = append(errs, errors.New("range end must not be less than range start"))
	}

	if c.RateLimit.MinDelay <= 0 {
		errs = append(errs, errors.New("min delay must be positive"))
	}
	if c.RateLimit.MaxDelay < c.RateLimit.MinDelay {
		errs = append(errs, errors.New("max delay must not be less than min delay"))
	}
	if c.RateLimit.WindowSize <= 0 {
		errs = append(errs, errors.New("rate limit window size must be positive"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Workers.Count < 1 {
		errs = append(errs, errors.New("worker count must be at least 1"))
	}
	if c.Workers.Max > 0 && c.Workers.Count > c.Workers.Max {
		errs = append(errs, fmt.Errorf("worker count must not exceed %d", c.Workers.Max))
	}

	if c.Output.DownloadsDir == "" {
		errs = append(errs, errors.New("downloads directory is required"))
	}
	if c.Output.ProgressFile == "" {
		errs = append(errs, errors.New("progress file is required"))
	}
	if c.Output.SaveInterval < 1 {
		errs = append(errs, errors.New("save interval must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ClampWorkers bounds a requested worker count to the configured valid range
func (c *Config) ClampWorkers(requested int) int {
	if requested < 1 {
		return 1
	}
	max := c.Workers.Max
	if max < 1 {
		max = 8
	}
	if requested > max {
		return max
	}
	return requested
}

// FormURL returns the absolute URL of the request form
func (c *Config) FormURL() string {
	return c.Portal.BaseURL + c.Portal.FormPath
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
