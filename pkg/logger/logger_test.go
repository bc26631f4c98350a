package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{"default config", DefaultConfig(), false},
		{"debug config", DebugConfig(), false},
		{"invalid level", &Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"invalid format", &Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"invalid output", &Config{Level: InfoLevel, Format: TextFormat, Output: "printer"}, true},
		{"file output without path", &Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDerivedLoggersKeepFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, InfoLevel, JSONFormat)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	log.WithComponent("extract").
		WithField("file", "wm-2024-03.pdf").
		WithError(errors.New("no text layer")).
		Info("skipping file")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}

	if entry["component"] != "extract" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["file"] != "wm-2024-03.pdf" {
		t.Errorf("expected file field, got %v", entry["file"])
	}
	if entry["error"] != "no text layer" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, WarnLevel, TextFormat)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be logged")
	}
}

func TestProgressTrackerStats(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWithWriter(&buf, DebugLevel, TextFormat)

	tracker := NewProgressTracker(ProgressConfig{Operation: "extract", Total: 4, Logger: log})
	tracker.Increment()
	tracker.Add(1)

	stats := tracker.GetStats()
	if stats.Current != 2 {
		t.Errorf("expected current 2, got %d", stats.Current)
	}
	if stats.Percentage != 50 {
		t.Errorf("expected 50%%, got %.1f", stats.Percentage)
	}
	if !strings.Contains(stats.String(), "extract: 2/4") {
		t.Errorf("unexpected stats string: %s", stats.String())
	}
}

func TestTimedOperationReturnsError(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWithWriter(&buf, DebugLevel, TextFormat)

	want := errors.New("boom")
	if err := TimedOperation("render", log, func() error { return want }); err != want {
		t.Errorf("expected wrapped fn error, got %v", err)
	}
	if !strings.Contains(buf.String(), "Operation failed") {
		t.Errorf("expected failure to be logged, got %s", buf.String())
	}
}
