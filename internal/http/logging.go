package http

import (
	"context"
	"log/slog"
	"time"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request scoped logger installed by RequestLogger
// and tags it with the handler, the operation and the addressed week, if any.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if start, ok := WeekStartFromContext(ctx); ok {
		pairs = append(pairs, "week_start", start.UTC().Format(time.RFC3339))
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
