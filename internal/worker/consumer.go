package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"go.uber.org/zap"
)

// MessageSource is a consumer-group reader with manual commits.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// MessageWriter writes an encoded message to a topic.
type MessageWriter interface {
	Write(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// DedupStore remembers handled event ids.
type DedupStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	Remember(ctx context.Context, id string) (bool, error)
}

// Consumer feeds integration events to their handlers. A message is committed
// only after its handler succeeded, it was already handled, or it was moved
// to the dead-letter topic. A failed message blocks its partition and is
// retried after RetryDelay.
type Consumer struct {
	Source  MessageSource
	Handler integration.Handler

	// Dedup is optional.
	Dedup DedupStore
	// DeadLetter is optional. Without it failing messages are retried
	// forever and undecodable ones are committed and logged.
	DeadLetter    MessageWriter
	MaxDeliveries int
	RetryDelay    time.Duration
	Log           *zap.Logger
}

func (c *Consumer) log() *zap.Logger { return logger.OrNop(c.Log) }

func (c *Consumer) retryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return 2 * time.Second
	}
	return c.RetryDelay
}

// Run fetches and processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log().Info("consumer started",
		zap.Int("max_deliveries", c.MaxDeliveries),
		zap.Bool("dead_letter", c.DeadLetter != nil),
		zap.Bool("dedup", c.Dedup != nil),
	)

	for {
		m, err := c.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log().Error("kafka fetch", zap.Error(err))
			if !sleepCtx(ctx, 200*time.Millisecond) {
				break
			}
			continue
		}
		c.Process(ctx, m)
	}

	c.log().Info("consumer stopped")
	return nil
}

// Process settles one message. It returns once the message is committed or
// ctx is cancelled; in the latter case the message stays uncommitted.
func (c *Consumer) Process(ctx context.Context, m kafka.Message) {
	log := c.log().With(
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)

	ev, err := integration.Decode(m.Value)
	if err != nil {
		log.Error("undecodable message", zap.Error(err))
		c.reject(ctx, m, "unknown", err)
		return
	}
	log = log.With(zap.String("type", ev.Type()), zap.String("event_id", ev.EventID()))

	if c.Dedup != nil && ev.EventID() != "" {
		seen, err := c.Dedup.Seen(ctx, ev.EventID())
		if err != nil {
			log.Warn("dedup lookup failed, handling anyway", zap.Error(err))
		}
		if seen {
			log.Info("duplicate event skipped")
			metrics.ConsumedTotal.WithLabelValues(ev.Type(), "duplicate").Inc()
			c.commit(ctx, m)
			return
		}
	}

	for attempt := 1; ; attempt++ {
		err := c.Handler.Handle(ctx, ev)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}

		metrics.ConsumedTotal.WithLabelValues(ev.Type(), "failed").Inc()
		log.Error("handler failed", zap.Int("attempt", attempt), zap.Error(err))

		if errors.Is(err, integration.ErrNoHandler) {
			c.reject(ctx, m, ev.Type(), err)
			return
		}
		if c.DeadLetter != nil && c.MaxDeliveries > 0 && attempt >= c.MaxDeliveries {
			c.reject(ctx, m, ev.Type(), err)
			return
		}
		if !sleepCtx(ctx, c.retryDelay()) {
			return
		}
	}

	if c.Dedup != nil && ev.EventID() != "" {
		if _, err := c.Dedup.Remember(ctx, ev.EventID()); err != nil {
			log.Warn("dedup remember failed", zap.Error(err))
		}
	}
	metrics.ConsumedTotal.WithLabelValues(ev.Type(), "handled").Inc()
	c.commit(ctx, m)
}

// reject settles a message that will never succeed: it is dead-lettered when
// a dead-letter topic is configured, then committed.
func (c *Consumer) reject(ctx context.Context, m kafka.Message, eventType string, cause error) {
	if c.DeadLetter != nil {
		headers := append([]kafka.Header{}, m.Headers...)
		headers = append(headers,
			kafka.Header{Key: "dead_letter_reason", Value: []byte(cause.Error())},
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		)
		ok := c.until(ctx, "dead-letter write", func() error {
			return c.DeadLetter.Write(ctx, m.Key, m.Value, headers...)
		})
		if !ok {
			return
		}
		metrics.ConsumedTotal.WithLabelValues(eventType, "dead_lettered").Inc()
	} else {
		metrics.ConsumedTotal.WithLabelValues(eventType, "skipped").Inc()
	}
	c.commit(ctx, m)
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	c.until(ctx, "kafka commit", func() error {
		return c.Source.Commit(ctx, m)
	})
}

// until retries fn every RetryDelay until it succeeds or ctx is cancelled.
func (c *Consumer) until(ctx context.Context, what string, fn func() error) bool {
	for {
		err := fn()
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.log().Error(what+" failed", zap.Error(err))
		if !sleepCtx(ctx, c.retryDelay()) {
			return false
		}
	}
}
