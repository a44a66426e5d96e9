package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	outputMu      sync.Mutex
	logOutput     io.Writer = os.Stderr
	currentFormat           = FormatText
	currentFields []slog.Attr
)

// LoggingConfigSpec defines the logging configuration for the Configure function.
type LoggingConfigSpec struct {
	Level        string
	Format       string // "json" or "text"
	CommonFields map[string]string
	// Output receives every record. Nil keeps the current destination.
	Output io.Writer
}

// Configure applies a LoggingConfigSpec to the global logger.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil {
		return nil
	}

	switch cfg.Format {
	case "", FormatText, FormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	level := slog.LevelInfo
	if cfg.Level != "" {
		level = ParseLevel(cfg.Level)
	}

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	outputMu.Lock()
	if cfg.Output != nil {
		logOutput = cfg.Output
	}
	if cfg.Format != "" {
		currentFormat = cfg.Format
	}
	outputMu.Unlock()

	initLogger(level, commonFields, currentFormat == FormatJSON)
	return nil
}

// initLogger rebuilds DefaultLogger. A nil commonFields keeps the fields
// from the last Configure call.
func initLogger(level slog.Level, commonFields []slog.Attr, useJSON bool) {
	outputMu.Lock()
	defer outputMu.Unlock()

	if commonFields != nil {
		currentFields = commonFields
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}

	DefaultLogger = slog.New(NewContextHandler(base, currentFields...))
	slog.SetDefault(DefaultLogger)
}

// OpenLogFile opens path for appending, creating it when missing. Existing
// content is never truncated.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: log file is meant to be readable
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
