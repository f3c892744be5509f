// Package config loads the service's runtime configuration: a YAML file
// overlaid with environment variables, in the same mapstructure-tagged
// shape the teacher uses for its processor Config (dsymprocessor/config.go),
// adapted from collector-component config to a standalone service's
// top-level settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/honeycombio/crash-symbolicator/internal/store"
)

// Config is the top-level service configuration.
type Config struct {
	// Addr is the address the HTTP server listens on.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// SymStoreKey selects which backend to download sym files from: one of
	// "local", "s3", "gcs".
	SymStoreKey string `mapstructure:"sym_store" yaml:"sym_store"`

	Local *store.LocalConfig `mapstructure:"local" yaml:"local"`
	S3    *store.S3Config    `mapstructure:"s3" yaml:"s3"`
	GCS   *store.GCSConfig   `mapstructure:"gcs" yaml:"gcs"`

	// CacheDir is where resolved symcaches are persisted on local disk.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// CacheLRUSize is the number of cache entries (serialized symcache bytes
	// plus module filename) kept in memory in front of the disk cache.
	CacheLRUSize int `mapstructure:"cache_lru_size" yaml:"cache_lru_size"`

	// RequestTimeout bounds how long a single symbolication request may run.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// LogLevel is one of zap's level names: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is "console" for human-readable development logs or "json"
	// for structured production logs, mirroring liblogging's two formatters.
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns a Config with the same defaults the service would run
// with if no file or environment overrides were present.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		SymStoreKey:    "local",
		Local:          &store.LocalConfig{Path: "./symbols"},
		CacheDir:       "./symcache",
		CacheLRUSize:   512,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// SYMBOLICATOR_-prefixed environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays SYMBOLICATOR_<UPPER_SNAKE_KEY> environment
// variables matching the top-level mapstructure keys. Nested backend
// configuration is left to the YAML file; only the settings an operator
// would reasonably flip per-deploy are exposed this way.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("SYMBOLICATOR_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_SYM_STORE"); ok {
		cfg.SymStoreKey = v
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_CACHE_DIR"); ok {
		cfg.CacheDir = v
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_CACHE_LRU_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheLRUSize = n
		}
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("SYMBOLICATOR_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
}

// Validate checks that the configuration is internally consistent: the
// selected backend has its matching configuration block set, the LRU size is
// positive, and log_format is "console" or "json". LogLevel is not checked
// here; an unknown level is rejected later by logging.Setup.
func (c *Config) Validate() error {
	switch c.SymStoreKey {
	case "local":
		if c.Local == nil {
			return fmt.Errorf("config: sym_store is %q but no local configuration provided", c.SymStoreKey)
		}
	case "s3":
		if c.S3 == nil {
			return fmt.Errorf("config: sym_store is %q but no s3 configuration provided", c.SymStoreKey)
		}
	case "gcs":
		if c.GCS == nil {
			return fmt.Errorf("config: sym_store is %q but no gcs configuration provided", c.SymStoreKey)
		}
	default:
		return fmt.Errorf("config: unknown sym_store %q", c.SymStoreKey)
	}

	if c.CacheLRUSize <= 0 {
		return fmt.Errorf("config: cache_lru_size must be positive, got %d", c.CacheLRUSize)
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}

	return nil
}
