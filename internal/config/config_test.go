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

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Reconnect.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.RejoinGrace)
	assert.Equal(t, time.Second, cfg.TypingTimeout)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nlog_level: debug\nreconnect:\n  max_attempts: 3\n"), 0o600))
	t.Setenv("CHAT_SESSION_BACKEND", "redis")
	t.Setenv("CHAT_REJOIN_GRACE", "500ms")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.RejoinGrace)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadFile_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CHAT_SESSION_BACKEND", "etcd")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
