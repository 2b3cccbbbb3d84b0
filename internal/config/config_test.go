package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 1*time.Second, cfg.Monitor.SlowQuery.Threshold)
	assert.True(t, cfg.Optimizer.Enabled)
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"level":"debug"},"optimizer":{"enabled":false}}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format) // untouched, keeps default
	assert.False(t, cfg.Optimizer.Enabled)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsNegativeSlowQueryThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"monitor":{"slow_query":{"threshold":-1}}}`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownLogFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"format":"xml"}}`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
