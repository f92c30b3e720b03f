package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgraph.dev/flux/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		level, err := parseLevel(input)
		require.NoError(t, err)
		assert.Equal(t, want, level)
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", ""} {
		_, err := parseLevel(input)
		assert.Error(t, err)
	}
}

func TestInitStdoutOnly(t *testing.T) {
	err := Init(config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, slog.Default())
}

func TestInitWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := config.LogConfig{
		Level:  "debug",
		Format: "text",
		File: config.FileOutputConfig{
			Enabled:    true,
			Path:       logPath,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
	require.NoError(t, Init(cfg))
	slog.Info("test message", "key", "value")

	_, err := os.Stat(logPath)
	assert.NoError(t, err)
}

func TestInitWithInvalidLevel(t *testing.T) {
	err := Init(config.LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestInitWithInvalidFormat(t *testing.T) {
	err := Init(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestInitWithMissingFilePath(t *testing.T) {
	cfg := config.LogConfig{
		Level:  "info",
		Format: "json",
		File:   config.FileOutputConfig{Enabled: true},
	}
	err := Init(cfg)
	assert.Error(t, err)
}
