package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultLocalURL          = "http://127.0.0.1:3000/sdapi/v1"
	DefaultProbeTimeoutSec   = 120
	DefaultProbeIntervalSec  = 0.2
	DefaultInferTimeoutSec   = 600
	DefaultOptionsTimeoutSec = 120
	DefaultMaxRetries        = 10
	DefaultBackoffFactorSec  = 0.1
	DefaultAddr              = ":8000"
	DefaultConcurrency       = 1
	DefaultMaxBodyBytes      = 8 << 20
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// DefaultRetryStatuses are the downstream statuses retried by the shared client.
var DefaultRetryStatuses = []int{502, 503, 504}

// Config holds runtime parameters for the worker.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	LocalURL          string  `json:"local_url" yaml:"local_url" toml:"local_url"`
	ProbeTimeoutSec   float64 `json:"probe_timeout_sec" yaml:"probe_timeout_sec" toml:"probe_timeout_sec"`
	ProbeIntervalSec  float64 `json:"probe_interval_sec" yaml:"probe_interval_sec" toml:"probe_interval_sec"`
	ProbeMaxWaitSec   float64 `json:"probe_max_wait_sec" yaml:"probe_max_wait_sec" toml:"probe_max_wait_sec"`
	InferTimeoutSec   float64 `json:"infer_timeout_sec" yaml:"infer_timeout_sec" toml:"infer_timeout_sec"`
	OptionsTimeoutSec float64 `json:"options_timeout_sec" yaml:"options_timeout_sec" toml:"options_timeout_sec"`
	// MaxRetries < 0 disables retries.
	MaxRetries       int     `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	BackoffFactorSec float64 `json:"backoff_factor_sec" yaml:"backoff_factor_sec" toml:"backoff_factor_sec"`
	RetryStatuses    []int   `json:"retry_statuses" yaml:"retry_statuses" toml:"retry_statuses"`
	Checkpoint       string  `json:"sd_model_checkpoint" yaml:"sd_model_checkpoint" toml:"sd_model_checkpoint"`

	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	Concurrency  int    `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Default returns a Config with every field set to its default.
func Default() Config { return Config{}.WithDefaults() }

// WithDefaults returns a copy of c with unset fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.LocalURL) == "" {
		c.LocalURL = DefaultLocalURL
	}
	c.LocalURL = strings.TrimRight(c.LocalURL, "/")
	if c.ProbeTimeoutSec <= 0 {
		c.ProbeTimeoutSec = DefaultProbeTimeoutSec
	}
	if c.ProbeIntervalSec <= 0 {
		c.ProbeIntervalSec = DefaultProbeIntervalSec
	}
	if c.ProbeMaxWaitSec < 0 {
		c.ProbeMaxWaitSec = 0
	}
	if c.InferTimeoutSec <= 0 {
		c.InferTimeoutSec = DefaultInferTimeoutSec
	}
	if c.OptionsTimeoutSec <= 0 {
		c.OptionsTimeoutSec = DefaultOptionsTimeoutSec
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffFactorSec <= 0 {
		c.BackoffFactorSec = DefaultBackoffFactorSec
	}
	if len(c.RetryStatuses) == 0 {
		c.RetryStatuses = append([]int(nil), DefaultRetryStatuses...)
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	return c
}

// Validate reports values WithDefaults cannot repair.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.LocalURL, "http://") && !strings.HasPrefix(c.LocalURL, "https://") {
		return fmt.Errorf("local_url must be an http(s) URL: %q", c.LocalURL)
	}
	for _, s := range c.RetryStatuses {
		if s < 100 || s > 599 {
			return fmt.Errorf("retry_statuses: invalid HTTP status %d", s)
		}
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console: %q", c.LogFormat)
	}
	return nil
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func (c Config) ProbeTimeout() time.Duration   { return seconds(c.ProbeTimeoutSec) }
func (c Config) ProbeInterval() time.Duration  { return seconds(c.ProbeIntervalSec) }
func (c Config) ProbeMaxWait() time.Duration   { return seconds(c.ProbeMaxWaitSec) }
func (c Config) InferTimeout() time.Duration   { return seconds(c.InferTimeoutSec) }
func (c Config) OptionsTimeout() time.Duration { return seconds(c.OptionsTimeoutSec) }
func (c Config) BackoffFactor() time.Duration  { return seconds(c.BackoffFactorSec) }

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides fields from SDWORKER_* variables. getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("SDWORKER_LOCAL_URL"); v != "" {
		cfg.LocalURL = v
	}
	if v := getenv("SDWORKER_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("SDWORKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SDWORKER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("SDWORKER_SD_MODEL_CHECKPOINT"); v != "" {
		cfg.Checkpoint = v
	}
	if v := getenv("SDWORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDWORKER_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := getenv("SDWORKER_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDWORKER_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := getenv("SDWORKER_PROBE_MAX_WAIT_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SDWORKER_PROBE_MAX_WAIT_SEC: %w", err)
		}
		cfg.ProbeMaxWaitSec = f
	}
	return nil
}
