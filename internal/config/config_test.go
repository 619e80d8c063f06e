package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "/socket.io/", cfg.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.Server.ConnectionTimeout)
	assert.Equal(t, 25*time.Second, cfg.Engine.PingInterval)
	assert.Equal(t, 20*time.Second, cfg.Engine.PingTimeout)
	assert.Equal(t, int64(1000000), cfg.Engine.MaxPayload)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":8080"
log_level: debug
server:
  connection_timeout: 5s
engine:
  ping_interval: 10s
  allowed_origins:
    - https://example.com
`), 0o600))

	t.Setenv("SIO_ADDR", ":9090")
	t.Setenv("EIO_PING_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Server.ConnectionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Engine.PingInterval)
	assert.Equal(t, 3*time.Second, cfg.Engine.PingTimeout)
	assert.Equal(t, []string{"https://example.com"}, cfg.Engine.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Logger(t *testing.T) {
	logger, err := Config{LogLevel: "debug", LogFormat: "console"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = Config{LogLevel: "loud"}.Logger()
	assert.Error(t, err)
}
