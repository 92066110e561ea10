// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// FileConfig configures an additional rotating log file.
type FileConfig struct {
	// Path of the log file; empty disables file logging.
	Path string

	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File additionally writes JSON logs to a rotating file.
	File FileConfig
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
		File: FileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// Setup configures the global zerolog logger.
// If the log file cannot be prepared, logging continues on Output only.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure console output
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Add the rotating file, always JSON
	file, fileErr := openFile(cfg.File)
	if file != nil {
		output = zerolog.MultiLevelWriter(output, file)
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	if fileErr != nil {
		logger.Warn().
			Err(fileErr).
			Str("path", cfg.File.Path).
			Msg("Log file unavailable, logging to console only")
	}

	return logger
}

// openFile returns a rotating writer for cfg, or nil if file logging is off.
func openFile(cfg FileConfig) (io.Writer, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Routing decisions (category, source, key)
//   - Store operations
//   - Retry backoff details
//
// Info: Normal operation events
//   - Served requests
//   - Install, activation and reap results
//   - Offline navigations answered with the root document
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed install attempts (retry scheduled)
//   - Failed write-backs into the store
//   - Stale stores that could not be deleted
//   - Requests that produced no response
//
// Error: Error conditions requiring attention
//   - Store backend unavailable
//   - Configuration errors
//
// Context Fields:
//   - generation: Generation id
//   - key: Request key ("METHOD url")
//   - category: navigation, subordinate or bypass
//   - source: network, cache or fallback
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: Network error classification (network, dns, timeout, canceled)
//   - request_id: Request id echoed in X-Request-ID
