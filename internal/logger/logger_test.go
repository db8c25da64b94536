package logger

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viterbi-notes/internal/config"
)

func TestLogger_FormatSelection(t *testing.T) {
	tests := []struct {
		name       string
		logFormat  string
		expectJSON bool
	}{
		{name: "json format", logFormat: "json", expectJSON: true},
		{name: "text format", logFormat: "text", expectJSON: false},
		{name: "default format (empty)", logFormat: "", expectJSON: true},
		{name: "unknown format defaults to json", logFormat: "unknown", expectJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(config.Config{LogLevel: "info", LogFormat: tt.logFormat}, &buf)
			log.Info("test message", "key", "value")

			output := buf.String()
			if tt.expectJSON {
				assert.Contains(t, output, `"msg":"test message"`)
				assert.Contains(t, output, `"key":"value"`)
			} else {
				assert.Contains(t, output, "test message")
				assert.Contains(t, output, "key=value")
				assert.NotContains(t, output, `"msg":`)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.Config{LogLevel: "info", LogFormat: "json"}, &buf)

	log.Debug("debug message")
	assert.Empty(t, buf.String(), "debug message should be suppressed when level is info")

	log.Info("info message")
	assert.Contains(t, buf.String(), "info message")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestLogger_Idempotency(t *testing.T) {
	cfg := config.Config{LogLevel: "info", LogFormat: "json"}

	log1, err1 := Init(cfg)
	require.NoError(t, err1)
	require.NotNil(t, log1)

	log2, err2 := Init(config.Config{LogLevel: "debug", LogFormat: "text"})
	require.NoError(t, err2)

	assert.Same(t, log1, log2, "Init with different config should still return the same logger instance")
}

func TestLogger_Concurrency(t *testing.T) {
	cfg := config.Config{LogLevel: "info", LogFormat: "json"}

	const numGoroutines = 10
	var wg sync.WaitGroup
	results := make([]*slog.Logger, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			log, err := Init(cfg)
			assert.NoError(t, err)
			results[index] = log
		}(i)
	}
	wg.Wait()

	for i := 1; i < numGoroutines; i++ {
		assert.Same(t, results[0], results[i], "all concurrent Init calls should return the same logger instance")
	}
}

func TestLogger_L(t *testing.T) {
	log1, err := Init(config.Config{LogLevel: "info", LogFormat: "json"})
	require.NoError(t, err)

	assert.Same(t, log1, L(), "L() should return the same logger instance as Init")
}
