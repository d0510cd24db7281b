// Package logging defines a minimal structured-logging interface used across
// the project. Implementations wrap slog and zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "cache reload", "key", key, "status", status)
type Logger interface {
	// Debug logs verbose diagnostics (cache hits, coalesced waits).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger writing to w. format is one of "text", "json" or "zap";
// level is one of "debug", "info", "warn", "error".
func New(w io.Writer, format, level string) (Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
		return NewSlogLogger(slog.New(h)), nil
	case "json":
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel(level))
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
