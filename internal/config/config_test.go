package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Local.MaxItems != 5000 {
		t.Errorf("expected 5000 max items, got %d", cfg.Local.MaxItems)
	}
	if cfg.Local.MaxAge != 30*time.Minute {
		t.Errorf("expected 30m max age, got %s", cfg.Local.MaxAge)
	}
	if cfg.MaxKeyLength != 1000 {
		t.Errorf("expected 1000 max key length, got %d", cfg.MaxKeyLength)
	}
	if cfg.Metrics.Period != 0 {
		t.Errorf("expected metrics disabled by default, got %s", cfg.Metrics.Period)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Run("adopts redis URL", func(t *testing.T) {
		t.Setenv("CACHE_URL", "redis://localhost:6379")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if !cfg.HasRemoteURL() {
			t.Error("expected remote URL to be recognized")
		}
	})

	t.Run("local tier sizing", func(t *testing.T) {
		t.Setenv("CACHETTE_LC_MAX_ITEMS", "250")
		t.Setenv("CACHETTE_LC_MAX_AGE", "60000")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if cfg.Local.MaxItems != 250 {
			t.Errorf("expected 250, got %d", cfg.Local.MaxItems)
		}
		if cfg.Local.MaxAge != time.Minute {
			t.Errorf("expected 1m, got %s", cfg.Local.MaxAge)
		}
	})

	t.Run("metrics period in minutes", func(t *testing.T) {
		t.Setenv("CACHETTE_METRICS_PERIOD_MINUTES", "5")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if cfg.Metrics.Period != 5*time.Minute {
			t.Errorf("expected 5m, got %s", cfg.Metrics.Period)
		}
		if cfg.Metrics.InvalidPeriod {
			t.Error("period should be valid")
		}
	})

	t.Run("invalid metrics period disables metrics", func(t *testing.T) {
		t.Setenv("CACHETTE_METRICS_PERIOD_MINUTES", "often")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if cfg.Metrics.Period != 0 || !cfg.Metrics.InvalidPeriod {
			t.Errorf("expected disabled metrics with invalid marker, got %+v", cfg.Metrics)
		}
	})

	t.Run("redlock tuning", func(t *testing.T) {
		t.Setenv("REDLOCK_RETRY_COUNT", "4")
		t.Setenv("REDLOCK_RETRY_DELAY_MS", "150")
		t.Setenv("REDLOCK_CLOCK_DRIFT_FACTOR", "0.02")
		t.Setenv("REDLOCK_JITTER_MS", "25")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		rl := cfg.Remote.Redlock
		if rl.RetryCount != 4 || rl.RetryDelay != 150*time.Millisecond {
			t.Errorf("retry settings lost: %+v", rl)
		}
		if rl.DriftFactor != 0.02 || rl.Jitter != 25*time.Millisecond {
			t.Errorf("drift/jitter settings lost: %+v", rl)
		}
	})

	t.Run("max key length", func(t *testing.T) {
		t.Setenv("UNITO_CACHE_MAX_KEY_LENGTH", "64")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if cfg.MaxKeyLength != 64 {
			t.Errorf("expected 64, got %d", cfg.MaxKeyLength)
		}
	})

	t.Run("unparsable numbers keep defaults", func(t *testing.T) {
		t.Setenv("CACHETTE_LC_MAX_ITEMS", "lots")
		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv failed: %v", err)
		}
		if cfg.Local.MaxItems != DefaultConfig().Local.MaxItems {
			t.Errorf("expected default, got %d", cfg.Local.MaxItems)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Local.MaxItems != DefaultConfig().Local.MaxItems {
			t.Error("expected defaults for missing file")
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		body := `{"maxKeyLength": 128, "local": {"maxItems": 10, "maxAge": 1000000000, "lockWait": 1000000000}}`
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.MaxKeyLength != 128 || cfg.Local.MaxItems != 10 {
			t.Errorf("file values lost: %+v", cfg)
		}
	})

	t.Run("malformed file fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max items", func(c *Config) { c.Local.MaxItems = 0 }},
		{"negative max age", func(c *Config) { c.Local.MaxAge = -time.Second }},
		{"zero lock wait", func(c *Config) { c.Local.LockWait = 0 }},
		{"zero max key length", func(c *Config) { c.MaxKeyLength = 0 }},
		{"negative retry count", func(c *Config) { c.Remote.Redlock.RetryCount = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("non-redis URL is tolerated", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = NewRedactedURL("memcached://somewhere")
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected tolerance, got %v", err)
		}
		if cfg.HasRemoteURL() {
			t.Error("non-redis URL must not select the remote tier")
		}
	})
}

func TestIsRedisURL(t *testing.T) {
	for url, want := range map[string]bool{
		"redis://host:6379":  true,
		"rediss://host:6380": true,
		"http://host":        false,
		"":                   false,
	} {
		if got := IsRedisURL(url); got != want {
			t.Errorf("IsRedisURL(%q) = %v, want %v", url, got, want)
		}
	}
}
