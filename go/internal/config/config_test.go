package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roomsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Typing.Debounce)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.RelayEnabled())
	assert.Equal(t, "roomsync", cfg.RelayConfig().SubjectPrefix)
	assert.Equal(t, int64(1<<20), cfg.ConnectionConfig().MaxMessageSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  url: https://collab.example.com
  http_timeout: 5s
user:
  username: ana
  room: lobby
typing:
  debounce: 2s
log:
  level: debug
connection:
  ping_interval: 15s
  send_buffer_size: 64
relay:
  nats_url: nats://localhost:4222
  stream: ROOM_FRAMES
`)
	t.Setenv("ROOMSYNC_ROOM", "art")
	t.Setenv("ROOMSYNC_TYPING_DEBOUNCE", "750ms")
	t.Setenv("ROOMSYNC_WS_SEND_BUFFER", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://collab.example.com", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Server.HTTPTimeout)
	assert.Equal(t, "ana", cfg.User.Username)
	assert.Equal(t, "art", cfg.User.Room, "environment wins over the file")
	assert.Equal(t, 750*time.Millisecond, cfg.Typing.Debounce)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())

	conn := cfg.ConnectionConfig()
	assert.Equal(t, 15*time.Second, conn.PingInterval)
	assert.Equal(t, 64, conn.SendBufferSize, "unparsable env keeps the file value")
	assert.Equal(t, 60*time.Second, conn.ReadTimeout, "unset keys keep defaults")

	require.True(t, cfg.RelayEnabled())
	pub := cfg.RelayConfig()
	assert.Equal(t, "nats://localhost:4222", pub.URL)
	assert.Equal(t, "ROOM_FRAMES", pub.StreamName)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [not, a, map"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "log:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "typing:\n  debounce: 0s\n"))
	assert.Error(t, err)
}
