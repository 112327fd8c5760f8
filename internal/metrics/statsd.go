package metrics

import (
	"fmt"
	"log/slog"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/cachette-io/cachette/internal/config"
)

// NewStatsdClient builds a DogStatsD client from config. When publishing is
// disabled it returns a no-op client so callers never branch.
func NewStatsdClient(cfg config.StatsdConfig, logger *slog.Logger) (statsd.ClientInterface, error) {
	if !cfg.Enabled {
		return &statsd.NoOpClient{}, nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)

	client, err := statsd.New(addr,
		statsd.WithNamespace(cfg.Prefix+"."),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("statsd publisher initialized", "address", addr, "prefix", cfg.Prefix)
	return client, nil
}
