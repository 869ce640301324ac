package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("should be filtered out")
	if buf.Len() != 0 {
		t.Errorf("Info record was logged at Warn level: %q", buf.String())
	}

	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("Warn record missing from output: %q", buf.String())
	}
}

func TestNewLoggerTrimsSourceToBaseName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("hello")

	out := buf.String()
	if strings.Contains(out, "/") {
		t.Errorf("expected source file trimmed to base name, got %q", out)
	}
	if !strings.Contains(out, "logutil_test.go") {
		t.Errorf("expected source=logutil_test.go in output, got %q", out)
	}
}
