package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Move outbox rows to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, relay)
	},
}

func relay(d *deps) (runner, error) {
	kc := kafka.FromConfig(d.cfg.Kafka)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopic(ctx, kc, kc.Topic, d.cfg.Kafka.Partitions, d.cfg.Kafka.ReplicationFactor); err != nil {
		return nil, fmt.Errorf("ensure topic: %w", err)
	}

	w := kafka.NewProducerFromConfig(kc)
	d.onClose(func() { _ = w.Close() })

	pc := d.cfg.Publisher
	r := &worker.Relay{
		Outbox:    repository.NewOutboxRepository(d.mysql),
		Writer:    w,
		BatchSize: pc.OutboxBatchSize,
		Poll:      pc.OutboxPoll,
		Log:       d.log,
	}

	d.log.Info(">> relay configured", zap.String("topic", kc.Topic), zap.Int("batch", r.BatchSize))
	return r.Run, nil
}
