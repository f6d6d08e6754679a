package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Log formats for console records.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// attributes whose values never reach a log sink
var redactedLogKeys = map[string]bool{
	"password": true,
	"api_key":  true,
	"dsn":      true,
	"token":    true,
}

const redacted = "[REDACTED]"

// ParseLogLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c LogConfig) handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: ParseLogLevel(c.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if redactedLogKeys[strings.ToLower(a.Key)] {
				return slog.String(a.Key, redacted)
			}
			return a
		},
	}
}

func (c LogConfig) consoleHandler(w io.Writer) slog.Handler {
	if c.Format == LogFormatJSON {
		return slog.NewJSONHandler(w, c.handlerOptions())
	}
	return slog.NewTextHandler(w, c.handlerOptions())
}

// NewLogger builds the process logger. Records go to console in c.Format
// and, when c.File is set, are fanned out as JSON to that file too. The
// returned function closes the file.
func (c LogConfig) NewLogger(console io.Writer) (*slog.Logger, func() error, error) {
	if c.File == "" {
		return slog.New(c.consoleHandler(console)), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileHandler := slog.NewJSONHandler(file, c.handlerOptions())
	return slog.New(slogmulti.Fanout(c.consoleHandler(console), fileHandler)), file.Close, nil
}
