package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkalytics/internal/config"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantStdout bool
		wantFile   bool
	}{
		{"console", "console", true, false},
		{"file", "file", false, true},
		{"both", "both", true, true},
		{"unknown falls back to console", "syslog", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			path := filepath.Join(t.TempDir(), "logs", "app.log")

			logger, closeFn, err := NewLogger(config.LoggingConfig{
				Level:    "info",
				Output:   tt.output,
				FilePath: path,
			}, &stdout)
			require.NoError(t, err)

			logger.Info("upload processed", "files", 2)
			logger.Debug("hidden")
			require.NoError(t, closeFn())

			if tt.wantStdout {
				entries := decodeLines(t, stdout.Bytes())
				require.Len(t, entries, 1)
				assert.Equal(t, "upload processed", entries[0]["msg"])
				assert.Equal(t, float64(2), entries[0]["files"])
			} else {
				assert.Zero(t, stdout.Len())
			}

			content, err := os.ReadFile(path)
			if tt.wantFile {
				require.NoError(t, err)
				assert.Len(t, decodeLines(t, content), 1)
			} else {
				assert.True(t, os.IsNotExist(err))
			}
		})
	}
}

func TestTraceHandlerInjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "debug"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "req-123")
	logger.With("component", "test").InfoContext(ctx, "with trace")
	logger.InfoContext(context.Background(), "without trace")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)
	assert.Equal(t, "req-123", entries[0]["trace_id"])
	assert.Equal(t, "test", entries[0]["component"])
	assert.NotContains(t, entries[1], "trace_id")
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "warn", Output: "file", FilePath: path})
	require.NoError(t, err)
	assert.Same(t, logger, GetLogger())

	logger.Warn("kept")
	logger.Info("dropped")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, content)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLogLevel(in))
		})
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx, id := EnsureTraceID(context.Background())
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(ctx))

	_, again := EnsureTraceID(ctx)
	assert.Equal(t, id, again)

	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{}, &buf)
	require.NoError(t, err)
	WithComponent(logger, "migration").Info("tagged")
	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, "migration", entries[0]["component"])
}
