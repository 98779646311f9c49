package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// Producer writes to one topic through a shared, goroutine-safe kafka.Writer.
// Writes are synchronous: they return once the partition leader acknowledged.
type Producer struct {
	w *kafka.Writer
}

func NewProducerFromConfig(c Config) *Producer {
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:            kafka.TCP(c.Brokers...),
		Topic:           c.Topic,
		Balancer:        &kafka.Hash{},
		RequiredAcks:    kafka.RequireOne,
		MaxAttempts:     3,
		WriteBackoffMin: 100 * time.Millisecond,
		WriteBackoffMax: time.Second,
		BatchTimeout:    10 * time.Millisecond,
		WriteTimeout:    wt,
		Transport:       &kafka.Transport{SASL: c.mechanism()},
	}
	return &Producer{w: w}
}

var _ integration.Publisher = (*Producer)(nil)

// Publish encodes ev and writes it keyed by its aggregate.
func (p *Producer) Publish(ctx context.Context, ev integration.Event) error {
	data, err := integration.Encode(ev)
	if err != nil {
		return err
	}

	err = p.Write(ctx, []byte(ev.Key()), data, Header{Key: "type", Value: []byte(ev.Type())})
	if err != nil {
		metrics.PublishedTotal.WithLabelValues("direct", "error").Inc()
		return fmt.Errorf("publish %s %s: %w", ev.Type(), ev.EventID(), err)
	}

	metrics.PublishedTotal.WithLabelValues("direct", "ok").Inc()
	return nil
}

// Write sends an already encoded message.
func (p *Producer) Write(ctx context.Context, key, value []byte, headers ...Header) error {
	err := p.w.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka write to %s: %w", p.w.Topic, err)
	}
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
