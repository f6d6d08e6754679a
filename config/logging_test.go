package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLogLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestLogConfig_NewLogger(t *testing.T) {
	t.Run("text console", func(t *testing.T) {
		var console bytes.Buffer
		logger, cleanup, err := LogConfig{Level: "INFO", Format: LogFormatText}.NewLogger(&console)
		require.NoError(t, err)
		defer cleanup()

		logger.Debug("hidden")
		logger.Info("routed query", "route", "structured")

		assert.Contains(t, console.String(), "route=structured")
		assert.NotContains(t, console.String(), "hidden")
	})

	t.Run("json console", func(t *testing.T) {
		var console bytes.Buffer
		logger, _, err := LogConfig{Level: "DEBUG", Format: LogFormatJSON}.NewLogger(&console)
		require.NoError(t, err)

		logger.Debug("SQL generated", "query", "SELECT 1")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(console.Bytes(), &entry))
		assert.Equal(t, "SQL generated", entry["msg"])
		assert.Equal(t, "SELECT 1", entry["query"])
	})

	t.Run("secrets are redacted", func(t *testing.T) {
		var console bytes.Buffer
		logger, _, err := LogConfig{Format: LogFormatJSON}.NewLogger(&console)
		require.NoError(t, err)

		logger.Info("opening store", "dsn", "postgres://talent:s3cret@db/talent", "API_KEY", "sk-live")

		assert.NotContains(t, console.String(), "s3cret")
		assert.NotContains(t, console.String(), "sk-live")
		assert.Equal(t, 2, strings.Count(console.String(), redacted))
	})

	t.Run("file receives json", func(t *testing.T) {
		var console bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "app.log")
		logger, cleanup, err := LogConfig{Level: "INFO", Format: LogFormatText, File: logFile}.NewLogger(&console)
		require.NoError(t, err)

		logger.Info("hello file", "chat_id", "c1")
		require.NoError(t, cleanup())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.Equal(t, "hello file", entry["msg"])
		assert.Contains(t, console.String(), "chat_id=c1")
	})

	t.Run("unwritable file", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, nil, 0644))

		_, _, err := LogConfig{File: filepath.Join(blocker, "app.log")}.NewLogger(&bytes.Buffer{})
		assert.Error(t, err)
	})
}
