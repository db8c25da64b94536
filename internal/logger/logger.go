package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"viterbi-notes/internal/config"
)

var (
	singleton *slog.Logger
	once      sync.Once
)

// Init initializes the singleton logger from the provided config, writing to stdout.
// It is thread-safe and idempotent - the first successful call wins,
// and subsequent calls return the same logger instance.
func Init(cfg config.Config) (*slog.Logger, error) {
	return InitWriter(cfg, os.Stdout)
}

// InitWriter is Init with an explicit destination; shells that print to
// stdout send their logs to stderr.
func InitWriter(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	var initErr error

	once.Do(func() {
		singleton = New(cfg, w)
	})

	return singleton, initErr
}

// New builds a logger from cfg without touching the singleton.
func New(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		fallthrough
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the singleton logger instance.
// Before Init it returns slog.Default(), so library code can always log.
func L() *slog.Logger {
	if singleton == nil {
		return slog.Default()
	}
	return singleton
}
