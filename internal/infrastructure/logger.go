package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"alkalytics/internal/config"
)

var (
	globalMu     sync.Mutex
	globalLogger *slog.Logger
	globalClose  func() error
)

// NewLogger builds a JSON logger writing to stdout, a file, or both. The
// returned close function releases the log file and is safe to call when
// no file was opened.
func NewLogger(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, func() error, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	closeFn := func() error { return nil }

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		closeFn = file.Close
		output = file
		if strings.EqualFold(cfg.Output, "both") {
			output = io.MultiWriter(stdout, file)
		}
	default:
		output = stdout
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     ParseLogLevel(cfg.Level),
	})
	return slog.New(&traceHandler{Handler: handler}), closeFn, nil
}

// InitializeLogger creates the process logger and installs it as the slog
// default. Calling it again replaces the previous logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	logger, closeFn, err := NewLogger(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalClose != nil {
		_ = globalClose()
	}
	globalLogger, globalClose = logger, closeFn
	slog.SetDefault(logger)
	return logger, nil
}

// GetLogger returns the process logger, or the slog default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// CloseLogFile closes the process log file if one is open.
func CloseLogFile() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalClose == nil {
		return nil
	}
	err := globalClose()
	globalClose = nil
	return err
}

// ResetLoggerForTesting drops the process logger. Tests only.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()
}

// traceHandler injects trace_id from the context into every record
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLogLevel converts a level name to slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}
