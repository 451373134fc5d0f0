package rowdb

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rowdb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithName adds a database file name field to the logger.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("name", name),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogOpen logs loading a database file.
func (l *Logger) LogOpen(ctx context.Context, name string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "database opened",
			"name", name,
			"rows", rows,
		)
	}
}

// LogSave logs saving a database file.
func (l *Logger) LogSave(ctx context.Context, name string, bytes int, compression Compression, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "database saved",
			"name", name,
			"bytes", bytes,
			"compression", compression.String(),
		)
	}
}

// LogRemoveSelection logs a query's row removal.
func (l *Logger) LogRemoveSelection(ctx context.Context, removed, remaining int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove selection failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "selection removed",
			"removed", removed,
			"remaining", remaining,
		)
	}
}
