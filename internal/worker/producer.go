package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// EventSource is what a producer scans: one kind of event and its recipients.
type EventSource interface {
	Kind() model.EventKind
	Upcoming(ctx context.Context, from, to time.Time, after repository.Cursor, limit int) ([]model.UpcomingEvent, error)
	Recipients(ctx context.Context, ev model.UpcomingEvent) ([]string, error)
}

// GroupSource reminds every attendee of a group event.
type GroupSource struct {
	Groups            repository.GroupEventsRepository
	AttendeeBatchSize int
}

func (s GroupSource) Kind() model.EventKind { return model.EventKindGroup }

func (s GroupSource) Upcoming(ctx context.Context, from, to time.Time, after repository.Cursor, limit int) ([]model.UpcomingEvent, error) {
	return s.Groups.Upcoming(ctx, from, to, after, limit)
}

func (s GroupSource) Recipients(ctx context.Context, ev model.UpcomingEvent) ([]string, error) {
	batch := s.AttendeeBatchSize
	if batch <= 0 {
		batch = 200
	}

	var all []string
	after := ""
	for {
		ids, err := s.Groups.Attendees(ctx, ev.ID, after, batch)
		if err != nil {
			return nil, fmt.Errorf("attendees of %s: %w", ev.ID, err)
		}
		all = append(all, ids...)
		if len(ids) < batch {
			return all, nil
		}
		after = ids[len(ids)-1]
	}
}

// PersonalSource reminds the owner of a personal event.
type PersonalSource struct {
	Personal repository.PersonalEventsRepository
}

func (s PersonalSource) Kind() model.EventKind { return model.EventKindPersonal }

func (s PersonalSource) Upcoming(ctx context.Context, from, to time.Time, after repository.Cursor, limit int) ([]model.UpcomingEvent, error) {
	return s.Personal.Upcoming(ctx, from, to, after, limit)
}

func (s PersonalSource) Recipients(_ context.Context, ev model.UpcomingEvent) ([]string, error) {
	return []string{ev.OwnerID}, nil
}

// Producer materializes one notification per recipient for every event that
// starts within [now, now+Window]. A pass walks the window page by page in
// (starts_at, id) order; each page is written in one transaction.
type Producer struct {
	DB            *sqlx.DB
	Source        EventSource
	Notifications repository.NotificationsRepository

	Window    time.Duration
	BatchSize int
	Sleep     time.Duration
	Now       func() time.Time
	Log       *zap.Logger

	cursor   repository.Cursor
	from, to time.Time
}

// ScanPage processes the next page of the current pass, starting a new pass
// when none is in progress. more reports whether the pass has further pages.
func (p *Producer) ScanPage(ctx context.Context) (created int, more bool, err error) {
	batch := p.BatchSize
	if batch <= 0 {
		batch = 50
	}
	if p.cursor.IsZero() {
		p.from = orNow(p.Now).Truncate(time.Second)
		p.to = p.from.Add(p.Window)
	}

	events, err := p.Source.Upcoming(ctx, p.from, p.to, p.cursor, batch)
	if err != nil {
		p.cursor = repository.Cursor{}
		return 0, false, fmt.Errorf("upcoming %s events: %w", p.Source.Kind(), err)
	}

	created, err = p.materialize(ctx, events)
	if err != nil {
		p.cursor = repository.Cursor{}
		return 0, false, err
	}

	if len(events) == batch {
		p.cursor = repository.After(events[len(events)-1])
		return created, true, nil
	}
	p.cursor = repository.Cursor{}
	return created, false, nil
}

func (p *Producer) materialize(ctx context.Context, events []model.UpcomingEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := orNow(p.Now)
	kind := p.Source.Kind()

	ids := make([]string, 0, len(events))
	var candidates []model.Notification
	for _, ev := range events {
		ids = append(ids, ev.ID)
		recipients, err := p.Source.Recipients(ctx, ev)
		if err != nil {
			return 0, err
		}
		for _, r := range recipients {
			candidates = append(candidates, model.Notification{
				EventKind:   kind,
				EventID:     ev.ID,
				RecipientID: r,
				ScheduledAt: ev.StartsAt.UTC(),
				CreatedAt:   now,
			})
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := p.Notifications.Materialized(ctx, tx, kind, ids)
	if err != nil {
		return 0, fmt.Errorf("existing notifications: %w", err)
	}

	missing := candidates[:0]
	for _, n := range candidates {
		if existing.Has(n) {
			continue
		}
		n.ID = util.NewAt(now)
		missing = append(missing, n)
	}

	if err := p.Notifications.InsertBatch(ctx, tx, missing); err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(kind.String()).Add(float64(len(missing)))
	return len(missing), nil
}

// Run scans until ctx is cancelled. Cancellation is observed between pages;
// a page that started is finished.
func (p *Producer) Run(ctx context.Context) error {
	log := logger.OrNop(p.Log).With(zap.String("producer", p.Source.Kind().String()))
	log.Info("producer started",
		zap.Duration("window", p.Window),
		zap.Int("batch", p.BatchSize),
		zap.Duration("sleep", p.Sleep),
	)

	for ctx.Err() == nil {
		created, more, err := p.ScanPage(context.WithoutCancel(ctx))
		if err != nil {
			log.Error("scan page failed", zap.Error(err))
		} else if created > 0 {
			log.Info("notifications created", zap.Int("count", created))
		}
		if more {
			continue
		}
		if !sleepCtx(ctx, p.Sleep) {
			break
		}
	}

	log.Info("producer stopped")
	return nil
}
