package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "reminder.integration-events", cfg.Kafka.Topic)
	assert.Equal(t, 15*time.Minute, cfg.Notifications.Window())
	assert.Equal(t, 5*time.Second, cfg.Notifications.Sleep())
	assert.Equal(t, 50, cfg.Notifications.NotificationsBatchSize)
	assert.False(t, cfg.Publisher.OutboxMode())
	require.Len(t, cfg.Mail.Providers, 2)
	assert.Equal(t, "http", cfg.Mail.Providers[0].Kind)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("notifications:\n  allowed_time_discrepancy: 30\npublisher:\n  mode: outbox\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("REMINDER_KAFKA_TOPIC", "custom.topic")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Notifications.Window())
	assert.True(t, cfg.Publisher.OutboxMode())
	assert.Equal(t, "custom.topic", cfg.Kafka.Topic)
	// untouched keys keep their defaults
	assert.Equal(t, 200, cfg.Notifications.AttendeeBatchSize)
}
