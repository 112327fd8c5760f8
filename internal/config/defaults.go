package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Local: LocalConfig{
			MaxItems:         5000,
			MaxAge:           30 * time.Minute,
			LockWait:         2 * time.Second,
			LockPollInterval: 10 * time.Millisecond,
		},
		Remote: RemoteConfig{
			ConnectionTimeout:   5 * time.Second,
			ReconnectInterval:   5 * time.Second,
			LargeValueThreshold: 100 * 1024,
			Redlock: RedlockConfig{
				RetryCount:  10,
				RetryDelay:  200 * time.Millisecond,
				DriftFactor: 0.01,
				Jitter:      50 * time.Millisecond,
			},
		},
		Metrics: MetricsConfig{
			Period: 0,
			Statsd: StatsdConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "cachette",
				Tags:      []string{},
			},
		},
		MaxKeyLength: 1000,
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
func ForTesting() *Config {
	return &Config{
		Local: LocalConfig{
			MaxItems:         100,
			MaxAge:           time.Minute,
			LockWait:         200 * time.Millisecond,
			LockPollInterval: 2 * time.Millisecond,
		},
		Remote: RemoteConfig{
			ConnectionTimeout:   time.Second,
			ReconnectInterval:   0, // no supervision loop in unit tests
			LargeValueThreshold: 64 * 1024,
			Redlock: RedlockConfig{
				RetryCount:  3,
				RetryDelay:  10 * time.Millisecond,
				DriftFactor: 0.01,
				Jitter:      2 * time.Millisecond,
			},
		},
		Metrics: MetricsConfig{
			Period: 0,
		},
		MaxKeyLength: 1000,
	}
}

// ForTestingWithRedis returns a test config pointed at the given Redis
// address.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.URL = NewRedactedURL("redis://" + addr)
	return cfg
}
