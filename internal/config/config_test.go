package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "chat_db", cfg.MongoDatabase)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "moment_chat.events", cfg.AMQPExchange)
	assert.Equal(t, 5*time.Minute, cfg.OnlineTTL)
	assert.Equal(t, 24*time.Hour, cfg.ConnTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MOMENTCHAT_HTTP_PORT", "9090")
	t.Setenv("MOMENTCHAT_LOG_LEVEL", "debug")
	t.Setenv("MOMENTCHAT_ONLINE_TTL", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.OnlineTTL)
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("MOMENTCHAT_CONN_TTL", "soon")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
