package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/wonny/marketviews/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: level}, &buf)
	return log, &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewWithWriterSetsLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			newBufferLogger(t, tt.level)
			if zerolog.GlobalLevel() != tt.want {
				t.Errorf("Expected global level %v, got %v", tt.want, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBaseFields(t *testing.T) {
	log, buf := newBufferLogger(t, "debug")
	log.Info("started")

	entry := decodeEntry(t, buf)
	if entry["service"] != serviceName {
		t.Errorf("Expected service %q, got %v", serviceName, entry["service"])
	}
	if entry["env"] != "development" {
		t.Errorf("Expected env development, got %v", entry["env"])
	}
	if entry["message"] != "started" {
		t.Errorf("Expected message 'started', got %v", entry["message"])
	}
}

func TestComponentAndFields(t *testing.T) {
	log, buf := newBufferLogger(t, "debug")

	log.Component("store").WithFields(map[string]interface{}{
		"records": 3,
		"manager": "BlackRock",
	}).Warn("batch rejected")

	entry := decodeEntry(t, buf)
	if entry["component"] != "store" {
		t.Errorf("Expected component store, got %v", entry["component"])
	}
	if entry["records"] != float64(3) {
		t.Errorf("Expected records 3, got %v", entry["records"])
	}
	if entry["manager"] != "BlackRock" {
		t.Errorf("Expected manager BlackRock, got %v", entry["manager"])
	}
	if entry["level"] != "warn" {
		t.Errorf("Expected level warn, got %v", entry["level"])
	}
}

func TestWithError(t *testing.T) {
	log, buf := newBufferLogger(t, "debug")

	log.WithError(errors.New("file locked")).Error("append failed")

	entry := decodeEntry(t, buf)
	if entry["error"] != "file locked" {
		t.Errorf("Expected error 'file locked', got %v", entry["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(t, "warn")

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %s", buf.String())
	}

	log.Warnf("retry %d", 2)
	if decodeEntry(t, buf)["message"] != "retry 2" {
		t.Errorf("Expected formatted warn message")
	}
}

func TestNop(t *testing.T) {
	// Must not panic
	Nop().WithField("k", "v").Error("discarded")
}
