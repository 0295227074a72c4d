package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("ingested document", "chunks", 7)

	out := buf.String()
	if !strings.Contains(out, "ingested document") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "chunks=7") {
		t.Errorf("output missing attribute: %q", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("charged", "tokens", 42)

	out := buf.String()
	if !strings.Contains(out, `"msg":"charged"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"tokens":42`) {
		t.Errorf("expected tokens attribute, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level records leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must accept any level.
	logger.Debug("a")
	logger.Info("b")
	logger.Error("c")
}
