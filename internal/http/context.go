package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/proof-of-ship/internal/logging"
)

type contextKey string

const weekStartContextKey contextKey = "week_start"

// ContextWithLogger returns a derived context carrying the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithWeekStart injects the week start resolved from the request path.
func ContextWithWeekStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, weekStartContextKey, start)
}

// WeekStartFromContext extracts a week start previously associated with the context.
func WeekStartFromContext(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(weekStartContextKey).(time.Time)
	return start, ok
}
