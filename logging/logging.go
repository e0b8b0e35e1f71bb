// Package logging sets up the zap logger. The TUI owns the terminal, so logs
// go to a file unless File is "-".
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Logger is the global logger installed by Initialize
var Logger = zap.NewNop()

// Config holds logging configuration
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
	File   string // path, or "-" for stderr
}

// DefaultFile returns $XDG_CACHE_HOME/memographic/memographic.log, falling
// back to the OS cache directory
func DefaultFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "memographic", "memographic.log")
}

// New builds a logger from config
func New(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	output := config.File
	if output == "" {
		output = DefaultFile()
	}
	if output == "-" {
		output = "stderr"
	} else if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
}

// Initialize builds a logger and installs it as the package and zap global
func Initialize(config Config) (*zap.Logger, error) {
	logger, err := New(config)
	if err != nil {
		return nil, err
	}
	Logger = logger
	zap.ReplaceGlobals(logger)

	logger.Debug("logging initialized",
		zap.String("level", config.Level),
		zap.String("format", config.Format),
	)
	return logger, nil
}

// Sync flushes any buffered log entries
func Sync() {
	// Sync fails on stderr for some terminals; nothing to do about it
	_ = Logger.Sync()
}
