package cachette

import (
	"log/slog"
)

// Option customizes cache construction.
type Option func(*cacheOptions)

type cacheOptions struct {
	logger     Logger
	slogLogger *slog.Logger
}

// WithLogger routes the cache's logging through a custom Logger.
func WithLogger(logger Logger) Option {
	return func(o *cacheOptions) {
		o.logger = logger
	}
}

// WithSlogLogger routes the cache's logging through an existing
// *slog.Logger.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *cacheOptions) {
		o.slogLogger = logger
	}
}

func applyOptions(opts []Option) *cacheOptions {
	o := &cacheOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *cacheOptions) slog() *slog.Logger {
	if o.slogLogger != nil {
		return o.slogLogger
	}
	if o.logger != nil {
		return slog.New(newLoggerHandler(o.logger))
	}
	return slog.Default()
}
