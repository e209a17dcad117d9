package telemetry

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/tracelog"
)

// PostgresTracer bridges pgx query tracing onto slog. Queries land at debug,
// connection-level problems at their native level.
func PostgresTracer() *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger:   tracelog.LoggerFunc(logPostgres),
		LogLevel: tracelog.LogLevelDebug,
	}
}

func logPostgres(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}

	var lvl slog.Level
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		lvl = slog.LevelDebug
	case tracelog.LogLevelInfo:
		lvl = slog.LevelInfo
	case tracelog.LogLevelWarn:
		lvl = slog.LevelWarn
	default:
		lvl = slog.LevelError
	}

	slog.Log(ctx, lvl, "postgres: "+msg, attrs...)
}
