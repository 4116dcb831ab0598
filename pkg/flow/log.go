package flow

import (
	"context"
	"log/slog"

	"github.com/zitadel/logging"
)

// logCtxWithRequestData returns a context carrying the logger enriched
// with request identifying attributes, so handlers further down the
// call chain log with the same correlation data.
func logCtxWithRequestData(ctx context.Context, logger *slog.Logger, attrs ...any) context.Context {
	if logger == nil {
		return ctx
	}
	logger = logger.With(slog.Group("flow", attrs...))
	return logging.ToContext(ctx, logger)
}

// loggerFromContext returns the logger carried by ctx, falling back to
// the given default.
func loggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := logging.FromContext(ctx); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
