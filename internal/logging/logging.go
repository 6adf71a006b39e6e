// Package logging wires log/slog with the ECS-style field naming the
// teacher uses, threaded through context.Context instead of a
// process-global logger (design note: "injected logger handle passed
// through contexts; no process-wide mutable state").
package logging

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey struct{}

// New builds a slog.Logger whose JSON output renames the standard
// attributes to their Elastic Common Schema equivalents.
func New(level slog.Level, out io.Writer) *slog.Logger {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			a.Key = "@timestamp"
		case slog.LevelKey:
			a.Key = "log.level"
		case slog.MessageKey:
			a.Key = "message"
		}
		return a
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replace,
	})

	return slog.New(handler)
}

// WithLogger returns a context carrying logger, retrievable with
// FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() if
// none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Step returns a logger enriched with the failing/current step tag used
// throughout the drive state machine (spec section 4.9 and section 7).
func Step(ctx context.Context, step string) *slog.Logger {
	return FromContext(ctx).With("step", step)
}
