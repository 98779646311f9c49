package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/repository"
	"go.uber.org/zap"
)

// Relay moves outbox rows to the broker in insertion order. A row is marked
// published only after the broker acknowledged it.
type Relay struct {
	Outbox    repository.OutboxRepository
	Writer    MessageWriter
	BatchSize int
	Poll      time.Duration
	Now       func() time.Time
	Log       *zap.Logger
}

func (r *Relay) poll() time.Duration {
	if r.Poll <= 0 {
		return time.Second
	}
	return r.Poll
}

func (r *Relay) batch() int {
	if r.BatchSize <= 0 {
		return 100
	}
	return r.BatchSize
}

// RunOnce relays up to BatchSize pending rows. It stops at the first broker
// failure so later rows never overtake an earlier one.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.Outbox.Pending(ctx, r.batch())
	if err != nil {
		return 0, fmt.Errorf("pending outbox rows: %w", err)
	}

	published := 0
	for _, row := range rows {
		err := r.Writer.Write(ctx, []byte(row.AggregateID), row.Payload,
			kafka.Header{Key: "type", Value: []byte(row.EventType)},
		)
		if err != nil {
			metrics.RelayedTotal.WithLabelValues("failed").Inc()
			if rerr := r.Outbox.RecordFailure(ctx, row.ID); rerr != nil {
				logger.OrNop(r.Log).Warn("outbox record failure", zap.String("id", row.ID), zap.Error(rerr))
			}
			return published, fmt.Errorf("relay %s: %w", row.ID, err)
		}

		if err := r.Outbox.MarkPublished(ctx, row.ID, orNow(r.Now)); err != nil {
			// published twice at worst; consumers de-duplicate by event id
			return published, fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		metrics.RelayedTotal.WithLabelValues("published").Inc()
		published++
	}
	return published, nil
}

// Run relays until ctx is cancelled, polling every Poll when idle.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.OrNop(r.Log).With(zap.String("worker", "relay"))
	log.Info("relay started", zap.Int("batch", r.batch()), zap.Duration("poll", r.poll()))

	for ctx.Err() == nil {
		n, err := r.RunOnce(ctx)
		if err != nil {
			log.Error("relay pass failed", zap.Int("published", n), zap.Error(err))
		} else if n > 0 {
			log.Debug("outbox relayed", zap.Int("published", n))
		}
		if err == nil && n == r.batch() {
			continue
		}
		if !sleepCtx(ctx, r.poll()) {
			break
		}
	}

	log.Info("relay stopped")
	return nil
}
