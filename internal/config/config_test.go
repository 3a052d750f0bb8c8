package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycast.pinglu.dev/internal/dispatch"
	"keycast.pinglu.dev/internal/targets"
)

func env(m map[string]string) func(string) string {
	return func(k string) string {
		return m[k]
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keycast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Tick())
	assert.Equal(t, "", cfg.Target)
	assert.Equal(t, dispatch.DEFAULT_ADDRESS, cfg.Address)
	assert.Equal(t, targets.DEFAULT_MDNS_SERVICE, cfg.MDNSService)
	assert.False(t, cfg.MDNS)
	assert.Equal(t, time.Second, cfg.MDNSTimeout())
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "port: 8000\ntick_ms: 20\ntarget: file-host\nmdns: true\n")

	// Test: file overrides defaults
	cfg, err := Load([]string{"--config", path}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 20, cfg.TickMs)
	assert.Equal(t, "file-host", cfg.Target)
	assert.True(t, cfg.MDNS)

	// Test: env overrides file
	cfg, err = Load([]string{"--config", path}, env(map[string]string{ENV_TARGET: " 10.0.0.7 "}))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", cfg.Target)

	// Test: flags override env and file
	cfg, err = Load([]string{"--config", path, "--target", "studio", "--port", "9100", "--tick-ms", "0", "--mdns=false"},
		env(map[string]string{ENV_TARGET: "10.0.0.7"}))
	require.NoError(t, err)
	assert.Equal(t, "studio", cfg.Target)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 0, cfg.TickMs)
	assert.False(t, cfg.MDNS)

	// Test: missing config file falls back to defaults
	cfg, err = Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_PORT, cfg.Port)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load([]string{"--port", "0"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_PORT)

	_, err = Load([]string{"--port", "70000"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_PORT)

	_, err = Load([]string{"--tick-ms=-5"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_TICK)

	// Test: tick too large to fit a time.Duration in milliseconds
	_, err = Load([]string{"--tick-ms", "10000000000000"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_TICK)

	_, err = Load([]string{"--tick-ms", "3600001"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_TICK)

	cfg, err := Load([]string{"--tick-ms", "3600000"}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Tick())

	// Test: mdns timeout from the config file is bounded too
	path := writeFile(t, "mdns_timeout_ms: 99999999999\n")
	_, err = Load([]string{"--config", path}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_MDNS_TIMEOUT)

	_, err = Load([]string{"--address", "camera"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_ADDRESS)

	_, err = Load([]string{"--address", "/cam\x00era"}, env(nil))
	require.ErrorIs(t, err, ERROR_INVALID_ADDRESS)

	_, err = Load([]string{"--port", "nine"}, env(nil))
	require.Error(t, err)

	path = writeFile(t, "port: [1, 2\n")
	_, err = Load([]string{"--config", path}, env(nil))
	require.Error(t, err)
}
