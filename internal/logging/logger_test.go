package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(level))
	return slog.New(newConsoleHandler(buf, lvl))
}

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "info")

	logger.Info("favorites written", Int("entries", 42), String("path", "players2/favourites.json"))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Errorf("line should contain level: %q", line)
	}
	if !strings.Contains(line, "favorites written") {
		t.Errorf("line should contain message: %q", line)
	}
	if !strings.Contains(line, "entries=42") {
		t.Errorf("line should contain attr: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("line should end with newline")
	}
}

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf, "info"), "regioncache")

	logger.Info("flushed")

	if !strings.Contains(buf.String(), "regioncache: flushed") {
		t.Errorf("component should prefix message, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "component=") {
		t.Errorf("component attr should not be repeated as key=value, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record should pass: %q", out)
	}
}

func TestErrorAttrQuoting(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, "info")

	logger.Error("lookup failed", Error(errors.New("no route to host")))

	if !strings.Contains(buf.String(), `error="no route to host"`) {
		t.Errorf("error value with spaces should be quoted, got %q", buf.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must report disabled at every level.
	logger.Error("dropped")
	if logger.Enabled(nil, slog.LevelError) { //nolint:staticcheck
		t.Error("nop logger should be disabled")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("New should reject unknown formats")
	}
}
