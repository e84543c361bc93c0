package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/log"
)

func TestIsDevAddr(t *testing.T) {
	assert.True(t, isDevAddr("localhost:8080"))
	assert.True(t, isDevAddr("127.0.0.1:8080"))
	assert.True(t, isDevAddr(":8080"))
	assert.False(t, isDevAddr("0.0.0.0:8080"))
	assert.False(t, isDevAddr("example.com:443"))
}

func TestCSRFSecret_Configured(t *testing.T) {
	cfg := &config.Config{HMACSecret: "0123456789abcdef0123456789abcdef"}
	secret, err := csrfSecret(cfg, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []byte(cfg.HMACSecret), secret)
}

func TestCSRFSecret_Ephemeral(t *testing.T) {
	secret, err := csrfSecret(&config.Config{}, log.NewNop())
	require.NoError(t, err)
	assert.Len(t, secret, config.MinHMACSecretLength)

	other, err := csrfSecret(&config.Config{}, log.NewNop())
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestParseRateBurst(t *testing.T) {
	t.Setenv("MENTOR_RATE_BURST", "")
	assert.Equal(t, 0, parseRateBurst())

	t.Setenv("MENTOR_RATE_BURST", "50")
	assert.Equal(t, 50, parseRateBurst())

	t.Setenv("MENTOR_RATE_BURST", "nope")
	assert.Equal(t, 0, parseRateBurst())

	t.Setenv("MENTOR_RATE_BURST", "-1")
	assert.Equal(t, 0, parseRateBurst())
}

func TestLogLevel(t *testing.T) {
	t.Setenv("MENTOR_LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, logLevel())

	t.Setenv("MENTOR_LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, logLevel())
}
