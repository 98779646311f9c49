package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/dedup"
	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Handle integration events from Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, consumer)
	},
}

func consumer(d *deps) (runner, error) {
	kcfg := d.cfg.Kafka
	kc := kafka.FromConfig(kcfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopic(ctx, kc, kc.Topic, kcfg.Partitions, kcfg.ReplicationFactor); err != nil {
		return nil, fmt.Errorf("ensure topic: %w", err)
	}

	disp, err := newDispatcher(d.cfg.Mail)
	if err != nil {
		return nil, err
	}

	rds, err := d.redis()
	if err != nil {
		return nil, err
	}

	handlers := &integration.Handlers{
		Users:             repository.NewUsersRepository(d.mysql),
		Groups:            repository.NewGroupEventsRepository(d.mysql),
		Personal:          repository.NewPersonalEventsRepository(d.mysql),
		Notifications:     repository.NewNotificationsRepository(d.mysql),
		Mail:              disp,
		AttendeeBatchSize: d.cfg.Notifications.AttendeeBatchSize,
		Log:               d.log,
	}

	source := kafka.NewConsumerFromConfig(kc)
	d.onClose(func() { _ = source.Close() })

	c := &worker.Consumer{
		Source:        source,
		Handler:       handlers.Registry(),
		Dedup:         dedup.NewRedisStore(rds, "", d.cfg.Dedup.TTL),
		MaxDeliveries: kcfg.MaxDeliveries,
		RetryDelay:    kcfg.RetryDelay,
		Log:           d.log,
	}

	if kcfg.DeadLetterTopic != "" {
		dc := kc
		dc.Topic = kcfg.DeadLetterTopic
		if err := kafka.EnsureTopic(ctx, dc, dc.Topic, 1, kcfg.ReplicationFactor); err != nil {
			return nil, fmt.Errorf("ensure dead-letter topic: %w", err)
		}
		dlq := kafka.NewProducerFromConfig(dc)
		d.onClose(func() { _ = dlq.Close() })
		c.DeadLetter = dlq
	}

	d.log.Info(">> consumer configured",
		zap.String("topic", kc.Topic),
		zap.String("group", kc.GroupID),
		zap.String("dead_letter_topic", kcfg.DeadLetterTopic),
	)
	return c.Run, nil
}
