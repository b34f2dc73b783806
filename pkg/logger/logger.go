// Package logger owns the slog setup shared by the OneVizn processes:
// a JSON handler tagged with the service name, plus context plumbing so
// request-scoped loggers travel with the request.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

const serviceName = "onevizn-api"

// New returns the process logger. Local and dev environments log at debug;
// everything else at info. Every line carries the service attribute so
// aggregated logs stay attributable.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", serviceName, "env", appEnv)
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

// ShutdownFlush exists for the shutdown path; the JSON handler writes
// unbuffered so there is nothing to drain yet.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
