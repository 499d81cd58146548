package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)

	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, int64(4096), cfg.WebSocket.MaxMessageSize)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "voxmeet", cfg.Mongo.Database)
	assert.Equal(t, 5*time.Second, cfg.Mongo.OpTimeout)

	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "coordinator:rooms", cfg.Redis.DirectoryPrefix)
	assert.Equal(t, 10*time.Second, cfg.Redis.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.Redis.KeyTTL)
	assert.Equal(t, "transcriber:room-ready", cfg.Redis.BridgeChannel)

	assert.Equal(t, "meeting-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)

	assert.Equal(t, 120*time.Second, cfg.Session.ReconnectGrace)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
}
