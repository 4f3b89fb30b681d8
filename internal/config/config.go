// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Store configuration
	Store StoreConfig `yaml:"store"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Watch configuration
	Watch WatchConfig `yaml:"watch"`

	// Query configuration
	Query QueryConfig `yaml:"query"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig locates the results store.
type StoreConfig struct {
	Root         string `envconfig:"REPEAT_STORE_ROOT" yaml:"root"`
	LabelsSuffix string `envconfig:"REPEAT_LABELS_SUFFIX" yaml:"labels_suffix"`
}

// CacheConfig holds fragment cache settings.
type CacheConfig struct {
	Type            string `envconfig:"REPEAT_CACHE_TYPE" yaml:"type"`
	TTL             int    `envconfig:"REPEAT_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
	CleanupInterval int    `envconfig:"REPEAT_CACHE_CLEANUP_INTERVAL" yaml:"cleanup_interval"`
	RedisURL        string `envconfig:"REPEAT_REDIS_URL" yaml:"redis_url"`
	KeyPrefix       string `envconfig:"REPEAT_CACHE_KEY_PREFIX" yaml:"key_prefix"`
}

// WatchConfig holds store watching settings.
type WatchConfig struct {
	Enabled  bool `envconfig:"REPEAT_WATCH_ENABLED" yaml:"enabled"`
	Debounce int  `envconfig:"REPEAT_WATCH_DEBOUNCE_MS" yaml:"debounce_ms"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	DefaultMeasures []string `envconfig:"REPEAT_DEFAULT_MEASURES" yaml:"default_measures"`
	StrictParams    bool     `envconfig:"REPEAT_STRICT_PARAMS" yaml:"strict_params"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"REPEAT_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"REPEAT_LOG_FORMAT" yaml:"format"`
}

// MetricsConfig holds instrumentation settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"REPEAT_METRICS_ENABLED" yaml:"enabled"`
	Namespace string `envconfig:"REPEAT_METRICS_NAMESPACE" yaml:"namespace"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Store = StoreConfig{
		Root:         ".",
		LabelsSuffix: "-labels",
	}

	cfg.Cache = CacheConfig{
		Type:            "memory",
		TTL:             600,
		CleanupInterval: 1800,
		RedisURL:        "redis://localhost:6379",
		KeyPrefix:       "repeat:fragment:",
	}

	cfg.Watch = WatchConfig{
		Enabled:  false,
		Debounce: 500,
	}

	cfg.Query = QueryConfig{
		DefaultMeasures: []string{"vox", "dsc", "jac", "time"},
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Metrics = MetricsConfig{
		Enabled:   true,
		Namespace: "repeat",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Store.Root) == "" {
		errs = append(errs, "store root must not be empty")
	}

	validCacheTypes := map[string]bool{"none": true, "memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be none, memory, or redis)", c.Cache.Type))
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, "cache ttl must not be negative")
	}

	if c.Cache.CleanupInterval < 0 {
		errs = append(errs, "cache cleanup_interval must not be negative")
	}

	if c.Cache.Type == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, "redis_url is required for the redis cache")
	}

	if c.Watch.Debounce < 0 {
		errs = append(errs, "watch debounce_ms must not be negative")
	}

	if len(c.Query.DefaultMeasures) == 0 {
		errs = append(errs, "default_measures must name at least one measure")
	}
	for _, m := range c.Query.DefaultMeasures {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, "default_measures must not contain empty names")
			break
		}
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// CacheTTL returns the fragment expiration time.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// CacheCleanupInterval returns the interval of expired fragment eviction.
func (c *Config) CacheCleanupInterval() time.Duration {
	return time.Duration(c.Cache.CleanupInterval) * time.Second
}

// WatchDebounce returns the delay between a store change and the rerun.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.Debounce) * time.Millisecond
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
