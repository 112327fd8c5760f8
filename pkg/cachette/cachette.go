package cachette

import (
	"log/slog"

	"github.com/cachette-io/cachette/internal/cache"
	"github.com/cachette-io/cachette/internal/config"
	"github.com/cachette-io/cachette/internal/events"
	"github.com/cachette-io/cachette/internal/metrics"
)

// New builds a cache from the environment: when CACHE_URL names a Redis
// endpoint the write-through (local + remote) composition is used, otherwise
// the cache stays local-only. Callers own the returned instance; nothing is
// process-global.
func New(opts ...Option) (*Cache, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromFile builds a cache from a JSON config file with environment
// overrides applied on top.
func NewFromFile(path string, opts ...Option) (*Cache, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig builds a cache from an explicit configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Cache, error) {
	o := applyOptions(opts)
	logger := o.slog()
	emitter := events.NewEmitter()

	local, err := cache.NewLocalCache(cfg.Local, emitter, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.HasRemoteURL() {
		if url := cfg.URL.Value(); url != "" {
			msg := "cache URL does not name a Redis endpoint, staying local-only"
			logger.Warn(msg)
			emitter.Emit(events.EventWarn, msg)
		}
		return newCache(local, cfg, emitter, logger), nil
	}

	remote, err := cache.NewRemoteCache(cfg.URL.Value(), cfg.Remote, emitter, logger)
	if err != nil {
		local.Close()
		return nil, err
	}

	reporter := buildReporter(cfg.Metrics, emitter, logger)
	tier := cache.NewWriteThroughCache(local, remote, reporter, emitter, logger)
	return newCache(tier, cfg, emitter, logger), nil
}

// NewLocal builds a local-only cache regardless of the environment.
func NewLocal(opts ...Option) (*Cache, error) {
	cfg := config.DefaultConfig()
	o := applyOptions(opts)
	logger := o.slog()
	emitter := events.NewEmitter()

	local, err := cache.NewLocalCache(cfg.Local, emitter, logger)
	if err != nil {
		return nil, err
	}
	return newCache(local, cfg, emitter, logger), nil
}

// NewRemote builds a cache over the bare remote tier. Unlike the
// write-through composition this tier supports distributed locking.
func NewRemote(cfg *config.Config, opts ...Option) (*Cache, error) {
	o := applyOptions(opts)
	logger := o.slog()
	emitter := events.NewEmitter()

	remote, err := cache.NewRemoteCache(cfg.URL.Value(), cfg.Remote, emitter, logger)
	if err != nil {
		return nil, err
	}
	return newCache(remote, cfg, emitter, logger), nil
}

// buildReporter assembles the hit/miss reporter from config, or nil when the
// period is unset. A period that could not be parsed warns once and leaves
// metrics disabled.
func buildReporter(cfg config.MetricsConfig, emitter *events.Emitter, logger *slog.Logger) *metrics.Reporter {
	if cfg.InvalidPeriod {
		msg := "metrics period is not a positive minute count, metrics disabled"
		logger.Warn(msg)
		emitter.Emit(events.EventWarn, msg)
		return nil
	}
	if cfg.Period <= 0 {
		return nil
	}

	sd, err := metrics.NewStatsdClient(cfg.Statsd, logger)
	if err != nil {
		logger.Warn("statsd client unavailable, reporting through events only", "error", err)
		sd = nil
	}
	return metrics.NewReporter(cfg.Period, emitter, sd, logger)
}

// Config returns a default configuration to adjust before NewFromConfig.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}

// TestConfigWithRedis returns a test configuration pointed at addr.
func TestConfigWithRedis(addr string) *config.Config {
	return config.ForTestingWithRedis(addr)
}
