package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
)

// EnsureTopic creates topic through the cluster controller. An existing topic
// is not an error.
func EnsureTopic(ctx context.Context, c Config, topic string, partitions, replication int) error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}

	d := c.dialer()
	conn, err := d.DialContext(ctx, "tcp", c.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial %s: %w", c.Brokers[0], err)
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	cc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		return fmt.Errorf("kafka dial controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	if err != nil && !topicExists(err) {
		return fmt.Errorf("kafka create topic %s: %w", topic, err)
	}
	return nil
}

func topicExists(err error) bool {
	return errors.Is(err, kafka.TopicAlreadyExists) ||
		strings.Contains(strings.ToLower(err.Error()), "already exists")
}
