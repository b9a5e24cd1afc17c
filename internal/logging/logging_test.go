package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestLogInfo(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	LogInfo("test info message")

	output := buf.String()
	if !strings.Contains(output, "test info message") {
		t.Errorf("Expected log output to contain 'test info message', got: %s", output)
	}
	if !strings.Contains(output, "\"level\":\"info\"") {
		t.Errorf("Expected log level to be 'info', got: %s", output)
	}
	if !strings.Contains(output, "\"job\":\"a10_exporter\"") {
		t.Errorf("Expected log to contain 'job' field, got: %s", output)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(&log.JSONFormatter{})

	LogError("test error message")

	output := buf.String()
	if !strings.Contains(output, "test error message") {
		t.Errorf("Expected log output to contain 'test error message', got: %s", output)
	}
	if !strings.Contains(output, "\"level\":\"error\"") {
		t.Errorf("Expected log level to be 'error', got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   log.Level
		wantOK bool
	}{
		{"DEBUG", log.DebugLevel, true},
		{"info", log.InfoLevel, true},
		{"Warn", log.WarnLevel, true},
		{"WARNING", log.WarnLevel, true},
		{"error", log.ErrorLevel, true},
		{"CRITICAL", log.FatalLevel, true},
		{" info ", log.InfoLevel, true},
		{"verbose", log.DebugLevel, false},
		{"", log.DebugLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPrepareLogs(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		logName     string
		level       string
		wantLevel   log.Level
		expectError bool
	}{
		{
			name:      "creates new log file",
			logName:   filepath.Join(tmpDir, "test.log"),
			level:     "INFO",
			wantLevel: log.InfoLevel,
		},
		{
			name:      "appends to existing log file",
			logName:   filepath.Join(tmpDir, "existing.log"),
			level:     "error",
			wantLevel: log.ErrorLevel,
		},
		{
			name:      "invalid level falls back to debug",
			logName:   filepath.Join(tmpDir, "fallback.log"),
			level:     "loud",
			wantLevel: log.DebugLevel,
		},
		{
			name:        "handles nested directory",
			logName:     filepath.Join(tmpDir, "logs", "nested.log"),
			level:       "INFO",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if strings.Contains(tt.name, "existing") {
				if err := os.WriteFile(tt.logName, []byte("existing content\n"), 0644); err != nil {
					t.Fatalf("Failed to create existing log file: %v", err)
				}
			}

			err := PrepareLogs(tt.logName, tt.level)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if _, statErr := os.Stat(tt.logName); os.IsNotExist(statErr) {
				t.Errorf("Log file was not created: %s", tt.logName)
			}
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("Expected level %v, got %v", tt.wantLevel, log.GetLevel())
			}

			var buf bytes.Buffer
			log.SetOutput(&buf)
			LogError("test after prepare")

			if !strings.Contains(buf.String(), "test after prepare") {
				t.Error("Logging did not work after PrepareLogs")
			}
		})
	}
}

func TestPrepareLogs_JSONFormatter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "json-test.log")

	if err := PrepareLogs(logFile, "DEBUG"); err != nil {
		t.Fatalf("PrepareLogs failed: %v", err)
	}

	LogInfo("json format test")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	output := string(content)
	if !strings.Contains(output, "\"msg\":\"json format test\"") {
		t.Errorf("JSON log missing 'msg' field: %s", output)
	}
	if !strings.Contains(output, "\"level\":") {
		t.Error("JSON log missing 'level' field")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(log.InfoLevel)

	SetLevel("error")
	if log.GetLevel() != log.ErrorLevel {
		t.Errorf("SetLevel(error) left level at %v", log.GetLevel())
	}

	SetLevel("chatty")
	if log.GetLevel() != log.ErrorLevel {
		t.Errorf("invalid level must keep the current one, got %v", log.GetLevel())
	}
}
