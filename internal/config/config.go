// Package config provides configuration management for the catalogue exporter.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and environment variables (optionally loaded from
// a .env file first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/altered-catalogue/pkg/client"
	"github.com/Sternrassler/altered-catalogue/pkg/logging"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL       = errors.New("source.base_url is required")
	ErrMissingUserAgent     = errors.New("source.user_agent is required")
	ErrNoFactions           = errors.New("source.factions must list at least one faction")
	ErrNoRarities           = errors.New("source.rarities must list at least one rarity")
	ErrInvalidItemsPerPage  = errors.New("source.items_per_page must be at least 1")
	ErrInvalidTimeout       = errors.New("source.timeout_sec must be at least 1")
	ErrInvalidRequestRate   = errors.New("source.requests_per_second must be non-negative")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidBackoffUnit   = errors.New("retry.backoff_unit_ms must be non-negative")
	ErrInvalidThumbnailSize = errors.New("thumbnails.width and thumbnails.height must be at least 1")
	ErrInvalidThumbnailTTL  = errors.New("thumbnails.ttl_hours must be non-negative")
	ErrInvalidBatchSize     = errors.New("output.batch_size must be at least 1")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete exporter configuration.
type Config struct {
	Source     SourceConfig    `yaml:"source"`
	Retry      RetryPolicy     `yaml:"retry"`
	Output     OutputConfig    `yaml:"output"`
	Thumbnails ThumbnailConfig `yaml:"thumbnails"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

// SourceConfig describes the remote catalogue.
type SourceConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Locale            string   `yaml:"locale"`
	Rarities          []string `yaml:"rarities"`
	Factions          []string `yaml:"factions"`
	ItemsPerPage      int      `yaml:"items_per_page"`
	UserAgent         string   `yaml:"user_agent"`
	TimeoutSec        int      `yaml:"timeout_sec"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// RetryPolicy defines per-page retry behavior.
type RetryPolicy struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffUnitMs int `yaml:"backoff_unit_ms"`
}

// OutputConfig defines where artifacts go.
type OutputConfig struct {
	ExcelPath       string `yaml:"excel_path"`
	MarkdownPath    string `yaml:"markdown_path"`
	SheetTitle      string `yaml:"sheet_title"`
	WorksheetTitle  string `yaml:"worksheet_title"`
	CredentialsFile string `yaml:"credentials_file"`
	BatchSize       int    `yaml:"batch_size"`
	SharePublic     bool   `yaml:"share_public"`
}

// ThumbnailConfig defines thumbnail sizing and caching.
type ThumbnailConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	CacheDir   string `yaml:"cache_dir"`
	RedisURL   string `yaml:"redis_url"`
	TTLHours   int    `yaml:"ttl_hours"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig defines where run metrics are written.
type MetricsConfig struct {
	// Textfile is a node exporter textfile path. Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration for the public Altered API.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:      "https://api.altered.gg",
			Locale:       "en-us",
			Rarities:     []string{"COMMON", "RARE", "EXALTED"},
			Factions:     []string{"AX", "BR", "LY", "MU", "OR", "YZ", "NE"},
			ItemsPerPage: 36,
			UserAgent:    "altered-catalogue/1.0",
			TimeoutSec:   30,
		},
		Retry: RetryPolicy{
			MaxAttempts:   5,
			BackoffUnitMs: 1000,
		},
		Output: OutputConfig{
			ExcelPath:       "altered_cards_catalogue.xlsx",
			SheetTitle:      "Altered TCG Card Catalogue",
			WorksheetTitle:  "Altered Cards",
			CredentialsFile: "credentials.json",
			BatchSize:       500,
			SharePublic:     true,
		},
		Thumbnails: ThumbnailConfig{
			Width:      80,
			Height:     110,
			CacheDir:   "temp",
			TimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadEnvFiles loads .env files without overriding the existing environment.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Unmarshal over the defaults so omitted keys keep their default value.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Source.BaseURL, "ALTERED_BASE_URL")
	setString(&c.Source.Locale, "ALTERED_LOCALE")
	setString(&c.Source.UserAgent, "ALTERED_USER_AGENT")
	setList(&c.Source.Factions, "ALTERED_FACTIONS")
	setList(&c.Source.Rarities, "ALTERED_RARITIES")
	setString(&c.Output.ExcelPath, "ALTERED_EXCEL_PATH")
	setString(&c.Output.MarkdownPath, "ALTERED_MARKDOWN_PATH")
	setString(&c.Output.SheetTitle, "GOOGLE_SHEET_NAME")
	setString(&c.Output.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	setString(&c.Thumbnails.CacheDir, "ALTERED_THUMB_DIR")
	setString(&c.Thumbnails.RedisURL, "REDIS_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Metrics.Textfile, "ALTERED_METRICS_TEXTFILE")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Source.ItemsPerPage, "ALTERED_ITEMS_PER_PAGE"},
		{&c.Source.TimeoutSec, "ALTERED_TIMEOUT_SEC"},
		{&c.Retry.MaxAttempts, "ALTERED_MAX_ATTEMPTS"},
		{&c.Retry.BackoffUnitMs, "ALTERED_BACKOFF_UNIT_MS"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("ALTERED_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ALTERED_REQUESTS_PER_SECOND: %w", err)
		}
		c.Source.RequestsPerSecond = rps
	}

	if v := os.Getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Logging.Pretty = pretty
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Source.UserAgent == "" {
		return ErrMissingUserAgent
	}
	if len(c.Source.Factions) == 0 {
		return ErrNoFactions
	}
	if len(c.Source.Rarities) == 0 {
		return ErrNoRarities
	}
	if c.Source.ItemsPerPage < 1 {
		return ErrInvalidItemsPerPage
	}
	if c.Source.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.Source.RequestsPerSecond < 0 {
		return ErrInvalidRequestRate
	}

	for i, f := range c.Source.Factions {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: factions[%d] is empty", ErrNoFactions, i)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.BackoffUnitMs < 0 {
		return ErrInvalidBackoffUnit
	}

	if c.Thumbnails.Width < 1 || c.Thumbnails.Height < 1 {
		return ErrInvalidThumbnailSize
	}
	if c.Thumbnails.TTLHours < 0 {
		return ErrInvalidThumbnailTTL
	}

	if c.Output.BatchSize < 1 {
		return ErrInvalidBatchSize
	}

	if !logging.ValidLevel(logging.LogLevel(c.Logging.Level)) {
		return ErrInvalidLogLevel
	}

	return nil
}

// ClientConfig maps the source and retry sections onto the API client config.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Source.UserAgent)
	cfg.BaseURL = c.Source.BaseURL
	cfg.Locale = c.Source.Locale
	cfg.Rarities = append([]string(nil), c.Source.Rarities...)
	cfg.ItemsPerPage = c.Source.ItemsPerPage
	cfg.Timeout = c.Source.GetTimeout()
	cfg.RequestsPerSecond = c.Source.RequestsPerSecond
	cfg.MaxAttempts = c.Retry.MaxAttempts
	cfg.BackoffUnit = c.Retry.GetBackoffUnit()
	return cfg
}

// GetTimeout returns the per-request timeout.
func (s *SourceConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// GetBackoffUnit returns the backoff base unit.
func (rp *RetryPolicy) GetBackoffUnit() time.Duration {
	return time.Duration(rp.BackoffUnitMs) * time.Millisecond
}

// GetTTL returns the thumbnail cache TTL (0 = never expire).
func (t *ThumbnailConfig) GetTTL() time.Duration {
	return time.Duration(t.TTLHours) * time.Hour
}

// GetTimeout returns the image download timeout.
func (t *ThumbnailConfig) GetTimeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
