package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.IP)
	assert.Equal(t, 4711, cfg.Port)
	assert.Equal(t, 30, cfg.GameTimeout)
	assert.True(t, cfg.LogServerErrors)
	assert.False(t, cfg.LogServerInfo)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TURNSERVER_PORT", "9000")
	t.Setenv("TURNSERVER_GAME_TIMEOUT", "15")
	t.Setenv("TURNSERVER_LOG_SERVER_INFO", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 15, cfg.GameTimeout)
	assert.True(t, cfg.LogServerInfo)
}

func TestLoad_InvalidIntRejected(t *testing.T) {
	t.Setenv("TURNSERVER_PORT", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.env"
	require.NoError(t, os.WriteFile(path, []byte("TURNSERVER_IP=0.0.0.0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.IP)
}
