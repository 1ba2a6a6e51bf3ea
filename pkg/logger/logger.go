package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New returns a structured JSON logger suitable for production log shipping.
// Debug level is enabled only for local/dev environments.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// ShutdownFlush exists so main has a single place to flush buffered sinks if
// we ever move off stdout. slog to stdout needs no flushing.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
