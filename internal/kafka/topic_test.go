package kafka

import (
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestTopicExists(t *testing.T) {
	assert.True(t, topicExists(kafka.TopicAlreadyExists))
	assert.True(t, topicExists(fmt.Errorf("create: %w", kafka.TopicAlreadyExists)))
	assert.True(t, topicExists(errors.New("Topic 'x' already exists.")))
	assert.False(t, topicExists(kafka.InvalidReplicationFactor))
}

func TestConfigMechanism(t *testing.T) {
	assert.Nil(t, Config{}.mechanism())

	m := Config{Username: "svc", Password: "secret"}.mechanism()
	if assert.NotNil(t, m) {
		assert.Equal(t, "PLAIN", m.Name())
	}
}
