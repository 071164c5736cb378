package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New returns the process-wide structured logger. Output is JSON on stdout;
// every line carries the deployment environment so mixed log streams stay
// attributable. No business logic should depend on logging details.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	addSource := false
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
		addSource = true
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: addSource})
	return slog.New(h).With("env", appEnv)
}

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

// ShutdownFlush drains buffered log output on shutdown. The JSON handler
// writes straight to stdout today, so there is nothing to drain; the hook
// keeps the shutdown path stable if a buffered handler is introduced.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
