package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{
			name:     "debug level",
			input:    "DEBUG",
			expected: DEBUG,
			wantErr:  false,
		},
		{
			name:     "info level",
			input:    "INFO",
			expected: INFO,
			wantErr:  false,
		},
		{
			name:     "warn level",
			input:    "WARN",
			expected: WARN,
			wantErr:  false,
		},
		{
			name:     "warning level",
			input:    "WARNING",
			expected: WARN,
			wantErr:  false,
		},
		{
			name:     "error level",
			input:    "ERROR",
			expected: ERROR,
			wantErr:  false,
		},
		{
			name:     "case insensitive",
			input:    "debug",
			expected: DEBUG,
			wantErr:  false,
		},
		{
			name:     "invalid level",
			input:    "INVALID",
			expected: INFO,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if result != tt.expected {
				t.Errorf("ParseLogLevel() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.level.String()
			if result != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func newTestLogger(level LogLevel, format LogFormat) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: level, Output: &buf, Format: format})
	return logger, &buf
}

func TestLoggerTextOutput(t *testing.T) {
	logger, buf := newTestLogger(DEBUG, FormatText)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 log lines, got %d", len(lines))
	}

	expectedContains := []string{
		"[DEBUG] debug message",
		"[INFO] info message",
		"[WARN] warn message",
		"[ERROR] error message",
	}
	for i, expected := range expectedContains {
		if !strings.Contains(lines[i], expected) {
			t.Errorf("Line %d = %q, expected to contain %q", i, lines[i], expected)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(WARN, FormatText)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(output, "[WARN]") {
		t.Error("Expected WARN message in output")
	}
	if !strings.Contains(output, "[ERROR]") {
		t.Error("Expected ERROR message in output")
	}
	if strings.Contains(output, "[DEBUG]") {
		t.Error("DEBUG message should be filtered out")
	}
	if strings.Contains(output, "[INFO]") {
		t.Error("INFO message should be filtered out")
	}
}

func TestLoggerSetLevel(t *testing.T) {
	logger, buf := newTestLogger(ERROR, FormatText)

	logger.Info("dropped")
	logger.SetLevel(DEBUG)
	logger.Info("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Error("message below level should not be emitted")
	}
	if !strings.Contains(output, "kept") {
		t.Error("message at level should be emitted after SetLevel")
	}
}

func TestLoggerFields(t *testing.T) {
	logger, buf := newTestLogger(INFO, FormatText)

	logger.Info("run complete", map[string]interface{}{
		"policy":   "lru",
		"requests": 100,
	})

	output := buf.String()
	if !strings.Contains(output, "policy=lru") {
		t.Errorf("missing field in output: %q", output)
	}
	if !strings.Contains(output, "requests=100") {
		t.Errorf("missing field in output: %q", output)
	}
}

func TestLoggerFieldsSorted(t *testing.T) {
	logger, buf := newTestLogger(INFO, FormatText)

	logger.Info("msg", map[string]interface{}{"zeta": 1, "alpha": 2})

	output := buf.String()
	if strings.Index(output, "alpha=") > strings.Index(output, "zeta=") {
		t.Errorf("fields not sorted: %q", output)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	logger, buf := newTestLogger(INFO, FormatText)
	child := logger.WithComponent("driver")

	child.Info("starting")

	if !strings.Contains(buf.String(), "component=driver") {
		t.Errorf("missing component tag: %q", buf.String())
	}
}

func TestLoggerWithFieldsInherits(t *testing.T) {
	logger, buf := newTestLogger(INFO, FormatText)
	child := logger.WithComponent("cache").WithFields(map[string]interface{}{"config": "lru-64m"})

	child.Info("evicting")

	output := buf.String()
	if !strings.Contains(output, "component=cache") {
		t.Errorf("parent context lost: %q", output)
	}
	if !strings.Contains(output, "config=lru-64m") {
		t.Errorf("child context lost: %q", output)
	}

	// The parent logger is not mutated by child creation.
	buf.Reset()
	logger.Info("parent message")
	if strings.Contains(buf.String(), "component=") {
		t.Errorf("parent logger gained child fields: %q", buf.String())
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	logger, buf := newTestLogger(INFO, FormatJSON)

	logger.Info("run complete", map[string]interface{}{"policy": "arc"})

	var entry struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", entry.Level)
	}
	if entry.Message != "run complete" {
		t.Errorf("Message = %q, want %q", entry.Message, "run complete")
	}
	if entry.Fields["policy"] != "arc" {
		t.Errorf("Fields[policy] = %v, want arc", entry.Fields["policy"])
	}
}

func TestNewLoggerNilConfig(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	// Defaults must not emit debug entries.
	var buf bytes.Buffer
	logger.output = &buf
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("default logger emitted debug output: %q", buf.String())
	}
}
