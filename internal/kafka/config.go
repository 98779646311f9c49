package kafka

import "github.com/jmehdipour/reminder/internal/config"

// FromConfig maps the kafka config section onto the integration topic.
func FromConfig(c config.KafkaConfig) Config {
	return Config{
		Brokers:      c.Brokers,
		Topic:        c.Topic,
		GroupID:      c.GroupID,
		Username:     c.Username,
		Password:     c.Password,
		MinBytes:     c.MinBytes,
		MaxBytes:     c.MaxBytes,
		WriteTimeout: c.WriteTimeout,
	}
}
