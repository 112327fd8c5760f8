// Package config provides configuration management for cachette.
package config

import (
	"time"

	"github.com/cachette-io/cachette/internal/types"
)

// RedactedURL is a store URL that masks its credentials when marshaled.
type RedactedURL = types.RedactedURL

// NewRedactedURL creates a new RedactedURL holding raw.
func NewRedactedURL(raw string) RedactedURL {
	return types.NewRedactedURL(raw)
}

// Config contains all configuration for the cachette cache.
type Config struct {
	// URL selects the remote store. Only redis:// and rediss:// URLs are
	// adopted; anything else leaves the cache local-only.
	URL     RedactedURL   `json:"url"`
	Local   LocalConfig   `json:"local"`
	Remote  RemoteConfig  `json:"remote"`
	Metrics MetricsConfig `json:"metrics"`
	// MaxKeyLength caps keys produced by the key builder.
	MaxKeyLength int `json:"maxKeyLength"`
}

// LocalConfig configures the in-process LRU tier.
type LocalConfig struct {
	// MaxItems bounds the live entry count.
	MaxItems int `json:"maxItems"`
	// MaxAge is the default entry lifetime applied when a set carries no TTL
	// cap of its own.
	MaxAge time.Duration `json:"maxAge"`
	// LockWait bounds how long an in-process lock acquisition may block.
	LockWait time.Duration `json:"lockWait"`
	// LockPollInterval is the re-check cadence while waiting for a lock.
	LockPollInterval time.Duration `json:"lockPollInterval"`
}

// RemoteConfig configures the Redis-backed tier.
type RemoteConfig struct {
	// ReadURL optionally points reads at a replica. Empty means reads share
	// the writer connection.
	ReadURL           RedactedURL   `json:"readUrl"`
	ConnectionTimeout time.Duration `json:"connectionTimeout"`
	// ReconnectInterval is the fixed delay between reconnection probes.
	ReconnectInterval time.Duration `json:"reconnectInterval"`
	// LargeValueThreshold is the encoded-body size above which a set emits a
	// warn event (the write still happens).
	LargeValueThreshold int           `json:"largeValueThreshold"`
	Redlock             RedlockConfig `json:"redlock"`
}

// RedlockConfig tunes the distributed lock controllers.
type RedlockConfig struct {
	RetryCount  int           `json:"retryCount"`
	RetryDelay  time.Duration `json:"retryDelay"`
	DriftFactor float64       `json:"driftFactor"`
	Jitter      time.Duration `json:"jitter"`
}

// MetricsConfig configures the write-through hit/miss reporter.
type MetricsConfig struct {
	// Period between summary emissions. Zero disables the reporter.
	Period time.Duration `json:"period"`
	// InvalidPeriod records that the environment toggle carried a value that
	// could not be parsed as a positive minute count; the factory warns once
	// when it builds the write-through composition and leaves metrics
	// disabled.
	InvalidPeriod bool         `json:"-"`
	Statsd        StatsdConfig `json:"statsd"`
}

// StatsdConfig configures optional DogStatsD publishing of the reporter's
// counters.
type StatsdConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}
