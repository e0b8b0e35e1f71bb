package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
	}{
		{"defaults", "", "", zap.InfoLevel},
		{"debug console", "debug", "console", zap.DebugLevel},
		{"error json", "error", "json", zap.ErrorLevel},
		{"warn upper case", "WARN", "JSON", zap.WarnLevel},
		{"invalid level defaults to info", "invalid", "console", zap.InfoLevel},
		{"invalid format defaults to console", "info", "invalid", zap.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "logs", "test.log")
			logger, err := New(Config{Level: tt.level, Format: tt.format, File: file})
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			defer logger.Sync()

			if !logger.Core().Enabled(tt.wantLevel) {
				t.Errorf("level %v should be enabled", tt.wantLevel)
			}
			if tt.wantLevel > zap.DebugLevel && logger.Core().Enabled(tt.wantLevel-1) {
				t.Errorf("level %v should be disabled", tt.wantLevel-1)
			}
			if _, err := os.Stat(filepath.Dir(file)); err != nil {
				t.Errorf("log directory not created: %v", err)
			}
		})
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "memographic.log")
	logger, err := New(Config{Level: "info", Format: "json", File: file})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	logger.Info("transcription finished", zap.String("provider", "gemini"))
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "transcription finished" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["provider"] != "gemini" {
		t.Errorf("provider = %v", entry["provider"])
	}
}

func TestInitialize(t *testing.T) {
	original := Logger
	defer func() { Logger = original }()

	logger, err := Initialize(Config{Level: "debug", File: filepath.Join(t.TempDir(), "x.log")})
	if err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}
	if Logger != logger {
		t.Error("Initialize() should install the package logger")
	}
	if zap.L() != logger {
		t.Error("Initialize() should replace the zap globals")
	}
	Sync()
}

func TestDefaultFile(t *testing.T) {
	got := DefaultFile()
	if filepath.Base(got) != "memographic.log" || filepath.Base(filepath.Dir(got)) != "memographic" {
		t.Errorf("DefaultFile() = %q", got)
	}
}
