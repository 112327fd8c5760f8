package cachette

import (
	"context"
	"log/slog"

	"github.com/cachette-io/cachette/internal/types"
)

// loggerHandler forwards slog records to a caller-supplied Logger. Group
// names are folded into attribute keys when handlers are derived, so
// inherited attributes carry their full dotted key and Handle only prefixes
// the per-record ones.
type loggerHandler struct {
	log    types.Logger
	prefix string
	base   []any
}

func newLoggerHandler(log types.Logger) loggerHandler {
	return loggerHandler{log: log}
}

func (h loggerHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h loggerHandler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, len(h.base), len(h.base)+2*r.NumAttrs())
	copy(args, h.base)
	r.Attrs(func(a slog.Attr) bool {
		args = append(args, h.prefix+a.Key, a.Value.Resolve().Any())
		return true
	})

	emit := h.log.Info
	switch {
	case r.Level >= slog.LevelError:
		emit = h.log.Error
	case r.Level >= slog.LevelWarn:
		emit = h.log.Warn
	case r.Level < slog.LevelInfo:
		emit = h.log.Debug
	}
	emit(r.Message, args...)
	return nil
}

func (h loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := h.base[:len(h.base):len(h.base)]
	for _, a := range attrs {
		base = append(base, h.prefix+a.Key, a.Value.Resolve().Any())
	}
	h.base = base
	return h
}

func (h loggerHandler) WithGroup(name string) slog.Handler {
	if name != "" {
		h.prefix += name + "."
	}
	return h
}
