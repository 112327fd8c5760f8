package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment
// overrides on top.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CACHE_URL"); v != "" {
		cfg.URL = NewRedactedURL(v)
	}

	if v := os.Getenv("CACHETTE_LC_MAX_ITEMS"); v != "" {
		cfg.Local.MaxItems = parseInt(v, cfg.Local.MaxItems)
	}
	if v := os.Getenv("CACHETTE_LC_MAX_AGE"); v != "" {
		cfg.Local.MaxAge = parseMillis(v, cfg.Local.MaxAge)
	}

	if v := os.Getenv("CACHETTE_METRICS_PERIOD_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && minutes > 0 {
			cfg.Metrics.Period = time.Duration(minutes) * time.Minute
		} else {
			cfg.Metrics.Period = 0
			cfg.Metrics.InvalidPeriod = true
		}
	}

	if v := os.Getenv("REDIS_CONNECTION_TIMEOUT_MS"); v != "" {
		cfg.Remote.ConnectionTimeout = parseMillis(v, cfg.Remote.ConnectionTimeout)
	}
	if v := os.Getenv("REDLOCK_RETRY_COUNT"); v != "" {
		cfg.Remote.Redlock.RetryCount = parseInt(v, cfg.Remote.Redlock.RetryCount)
	}
	if v := os.Getenv("REDLOCK_RETRY_DELAY_MS"); v != "" {
		cfg.Remote.Redlock.RetryDelay = parseMillis(v, cfg.Remote.Redlock.RetryDelay)
	}
	if v := os.Getenv("REDLOCK_CLOCK_DRIFT_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.Remote.Redlock.DriftFactor = f
		}
	}
	if v := os.Getenv("REDLOCK_JITTER_MS"); v != "" {
		cfg.Remote.Redlock.Jitter = parseMillis(v, cfg.Remote.Redlock.Jitter)
	}

	if v := os.Getenv("UNITO_CACHE_MAX_KEY_LENGTH"); v != "" {
		cfg.MaxKeyLength = parseInt(v, cfg.MaxKeyLength)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.Statsd.AgentHost = v
		cfg.Metrics.Statsd.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.Statsd.Port = parseInt(v, cfg.Metrics.Statsd.Port)
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.Statsd.Tags = append(cfg.Metrics.Statsd.Tags, "env:"+v)
	}
}

// HasRemoteURL reports whether the configured URL selects a remote store.
func (c *Config) HasRemoteURL() bool {
	return IsRedisURL(c.URL.Value())
}

// IsRedisURL reports whether url names a Redis endpoint.
func IsRedisURL(url string) bool {
	return strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Local.MaxItems <= 0 {
		return fmt.Errorf("local.maxItems must be positive")
	}
	if c.Local.MaxAge < 0 {
		return fmt.Errorf("local.maxAge must not be negative")
	}
	if c.Local.LockWait <= 0 {
		return fmt.Errorf("local.lockWait must be positive")
	}
	if c.MaxKeyLength <= 0 {
		return fmt.Errorf("maxKeyLength must be positive")
	}
	if c.Remote.Redlock.RetryCount < 0 {
		return fmt.Errorf("remote.redlock.retryCount must not be negative")
	}
	// A non-Redis URL is tolerated here: the factory falls back to the local
	// tier and warns. Only the remote tier constructor rejects it outright.
	return nil
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseMillis(s string, defaultVal time.Duration) time.Duration {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultVal
	}
	return time.Duration(v) * time.Millisecond
}
