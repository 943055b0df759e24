package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/on-the-ground/sourcebus/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sourcebus.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNormalize_FallsBackToDefaults(t *testing.T) {
	cfg := config.Config{Shards: 0, FailureBuffer: -1}.Normalize()
	assert.Equal(t, config.Default(), cfg)

	cfg = config.Config{Shards: 4, FailureBuffer: 2, LogLevel: " DEBUG "}.Normalize()
	assert.Equal(t, 4, cfg.Shards)
	assert.Equal(t, 2, cfg.FailureBuffer)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_FileOverridesOnlyPresentKeys(t *testing.T) {
	path := writeFile(t, `
shards = 2
strict_events = true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Shards)
	assert.True(t, cfg.StrictEvents)
	assert.Equal(t, config.Default().FailureBuffer, cfg.FailureBuffer)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
shards = 2
log_level = "warn"
`)
	t.Setenv("SOURCEBUS_SHARDS", "16")
	t.Setenv("SOURCEBUS_ECHO_EMITS", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Shards)
	assert.True(t, cfg.EchoEmits)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, `shardz = 2`)

	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("SOURCEBUS_LOG_LEVEL", "chatty")

	_, err := config.Load("")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
