package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: WarnLevel, Format: JSONFormat, Output: &buf})

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "warn message") {
		t.Errorf("first line should be the warning, got %q", lines[0])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	logger.Info("loaded registry", map[string]interface{}{"deviations": 12})

	var e struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if e.Level != "info" || e.Message != "loaded registry" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Fields["deviations"] != float64(12) {
		t.Errorf("expected deviations field 12, got %v", e.Fields["deviations"])
	}
}

func TestHumanFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: InfoLevel, Format: HumanFormat, Output: &buf})

	logger.Info("analysis complete", map[string]interface{}{"archetype": "A1"})

	out := buf.String()
	if !strings.Contains(out, "[info] analysis complete") {
		t.Errorf("unexpected human output: %q", out)
	}
	if !strings.Contains(out, "archetype=A1") {
		t.Errorf("expected field in human output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"warn":    WarnLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
		"error":   ErrorLevel,
		"info":    InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
