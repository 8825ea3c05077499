package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggerConfig{
		Level:      slog.LevelInfo,
		Output:     &buf,
		JSONFormat: true,
	}

	logger := NewLogger(cfg)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if logger.Slog() == nil {
		t.Error("expected non-nil underlying logger")
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggerConfig{
		Level:      slog.LevelInfo,
		Output:     &buf,
		JSONFormat: true,
	}

	logger := NewLogger(cfg)
	loggerWithFields := logger.WithFields("provider", "openai-chat", "model", "gpt-4")
	loggerWithFields.Info("test")

	output := buf.String()
	if !strings.Contains(output, "openai-chat") {
		t.Errorf("expected provider in output, got %s", output)
	}
	if !strings.Contains(output, "gpt-4") {
		t.Errorf("expected model in output, got %s", output)
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggerConfig{
		Level:      slog.LevelDebug,
		Output:     &buf,
		JSONFormat: true,
	}

	logger := NewLogger(cfg)
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got %s", want, output)
		}
	}
}

func TestLogger_Slog(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggerConfig{
		Level:      slog.LevelInfo,
		Output:     &buf,
		JSONFormat: true,
	}

	logger := NewLogger(cfg)
	slogger := logger.Slog()

	if slogger == nil {
		t.Error("expected non-nil slog.Logger")
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := LoggerConfig{
		Level:      slog.LevelInfo,
		Output:     &buf,
		JSONFormat: false,
	}

	logger := NewLogger(cfg)
	logger.Info("test message")

	output := buf.String()
	if strings.Contains(output, "{") {
		t.Errorf("expected text format, got JSON-like output: %s", output)
	}
}
