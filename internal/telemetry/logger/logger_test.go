package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})

	log.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "key=value") {
		t.Errorf("text output missing fields: %s", out)
	}
}

func TestUnknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "xml", Output: &buf})

	log.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("fallback output = %s, want text handler", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("below-level entries leaked: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
