// Package observability provides structured logging and tracing wiring
// shared by Router, Dispatcher, and cmd/gateway; metrics live in
// internal/metrics.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so callers get a stable type to pass around
// instead of depending on log/slog directly at every call site.
type Logger struct {
	logger *slog.Logger
}

// LoggerConfig configures a Logger at construction.
type LoggerConfig struct {
	Level      slog.Level
	Output     io.Writer
	AddSource  bool
	JSONFormat bool
}

// NewLogger creates a new Logger from cfg.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return &Logger{logger: slog.New(handler)}
}

// WithFields returns a logger with additional structured fields attached.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// With is an alias for WithFields matching slog's own naming.
func (l *Logger) With(args ...any) *Logger {
	return l.WithFields(args...)
}

func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }

// Slog returns the underlying slog.Logger for interop with libraries that
// expect one directly.
func (l *Logger) Slog() *slog.Logger { return l.logger }
