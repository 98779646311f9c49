package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/mail"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"go.uber.org/zap"
)

// Mailer sends due notifications. A row is flagged sent only after the
// transport accepted it, and only by the first writer.
type Mailer struct {
	Notifications repository.NotificationsRepository
	Sender        mail.Sender
	// Deliveries is optional; successful sends are appended to it.
	Deliveries repository.DeliveriesRepository

	BatchSize   int
	MaxAttempts int // 0 = retry forever
	Sleep       time.Duration
	Now         func() time.Time
	Log         *zap.Logger
}

// BatchResult reports one pass. Failures are per row; one bad row never
// stops the rest of the batch.
type BatchResult struct {
	Selected int
	Sent     int
	Failed   int
	Errors   []error
}

func (m *Mailer) batch() int {
	if m.BatchSize <= 0 {
		return 50
	}
	return m.BatchSize
}

// RunOnce sends up to BatchSize due notifications, oldest first.
func (m *Mailer) RunOnce(ctx context.Context) (BatchResult, error) {
	now := orNow(m.Now)

	due, err := m.Notifications.Due(ctx, now, m.MaxAttempts, m.batch())
	if err != nil {
		return BatchResult{}, fmt.Errorf("select due notifications: %w", err)
	}

	res := BatchResult{Selected: len(due)}
	var delivered []model.Delivery

	for _, n := range due {
		sentAt, err := m.deliver(ctx, n)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("notification %s: %w", n.ID, err))
			continue
		}
		if sentAt.IsZero() {
			continue
		}
		res.Sent++
		delivered = append(delivered, model.Delivery{
			NotificationID: n.ID,
			EventKind:      n.EventKind.String(),
			EventID:        n.EventID,
			RecipientID:    n.RecipientID,
			Email:          n.RecipientEmail,
			ScheduledAt:    n.ScheduledAt,
			SentAt:         sentAt,
		})
	}

	if m.Deliveries != nil && len(delivered) > 0 {
		if err := m.Deliveries.Append(ctx, delivered); err != nil {
			logger.OrNop(m.Log).Warn("delivery log append failed", zap.Int("rows", len(delivered)), zap.Error(err))
		}
	}
	return res, nil
}

// deliver returns the time the row was flagged sent, or zero when another
// writer flagged it first.
func (m *Mailer) deliver(ctx context.Context, n model.DueNotification) (time.Time, error) {
	msg, err := mail.Reminder(n)
	if err == nil {
		err = m.Sender.Send(ctx, msg)
	}
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		if rerr := m.Notifications.RecordFailure(ctx, n.ID, err); rerr != nil {
			return time.Time{}, fmt.Errorf("%w (record failure: %v)", err, rerr)
		}
		return time.Time{}, err
	}

	sentAt := orNow(m.Now).Truncate(time.Second)
	ok, err := m.Notifications.MarkSent(ctx, n.ID, sentAt)
	if err != nil {
		// the row stays unsent and is mailed again on a later pass
		return time.Time{}, fmt.Errorf("mark sent: %w", err)
	}
	if !ok {
		metrics.NotificationsTotal.WithLabelValues("raced").Inc()
		return time.Time{}, nil
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return sentAt, nil
}

// Run drains due notifications until ctx is cancelled. A full, clean batch is
// followed immediately by the next one; anything else waits Sleep.
func (m *Mailer) Run(ctx context.Context) error {
	log := logger.OrNop(m.Log).With(zap.String("worker", "mailer"))
	log.Info("mailer started", zap.Int("batch", m.batch()), zap.Duration("sleep", m.Sleep))

	for ctx.Err() == nil {
		res, err := m.RunOnce(ctx)
		switch {
		case err != nil:
			log.Error("mailer pass failed", zap.Error(err))
		case res.Selected > 0:
			log.Info("mailer pass",
				zap.Int("selected", res.Selected),
				zap.Int("sent", res.Sent),
				zap.Int("failed", res.Failed),
			)
			for _, e := range res.Errors {
				log.Warn("notification not sent", zap.Error(e))
			}
		}

		if err == nil && res.Selected == m.batch() && res.Failed == 0 {
			continue
		}
		if !sleepCtx(ctx, m.Sleep) {
			break
		}
	}

	log.Info("mailer stopped")
	return nil
}
