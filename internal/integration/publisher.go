package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/util"
	"github.com/jmoiron/sqlx"
)

// Publisher hands an event to the broker. A nil error means the event is
// durable; a failure is returned, never dropped.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// OutboxPublisher stores encoded events in the outbox table; the relay worker
// moves them to the broker.
type OutboxPublisher struct {
	Outbox repository.OutboxRepository
	Now    func() time.Time
}

func NewOutboxPublisher(outbox repository.OutboxRepository) *OutboxPublisher {
	return &OutboxPublisher{Outbox: outbox, Now: time.Now}
}

var _ Publisher = (*OutboxPublisher)(nil)

func (p *OutboxPublisher) Publish(ctx context.Context, ev Event) error {
	return p.PublishTx(ctx, nil, ev)
}

// PublishTx stores ev in tx, or in its own transaction when tx is nil.
func (p *OutboxPublisher) PublishTx(ctx context.Context, tx *sqlx.Tx, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}

	now := p.Now().UTC()
	err = p.Outbox.Insert(ctx, tx, model.OutboxEvent{
		ID:          util.NewAt(now),
		Aggregate:   aggregates[ev.Type()],
		AggregateID: ev.Key(),
		EventType:   ev.Type(),
		Payload:     payload,
		CreatedAt:   now,
	})
	if err != nil {
		metrics.PublishedTotal.WithLabelValues("outbox", "error").Inc()
		return fmt.Errorf("outbox %s %s: %w", ev.Type(), ev.EventID(), err)
	}

	metrics.PublishedTotal.WithLabelValues("outbox", "ok").Inc()
	return nil
}

// OutboxStager writes the integration events of a command into the outbox
// inside the command's own transaction, so the domain change and its
// announcement commit or roll back together.
type OutboxStager struct {
	outbox      *OutboxPublisher
	translators map[string]Translator
}

func NewOutboxStager(outbox *OutboxPublisher, translators ...Translator) *OutboxStager {
	s := &OutboxStager{outbox: outbox, translators: make(map[string]Translator, len(translators))}
	for _, t := range translators {
		s.translators[t.Handles()] = t
	}
	return s
}

// Stage translates and stores every event that has a translator. Any failure
// is returned so the command rolls back.
func (s *OutboxStager) Stage(ctx context.Context, tx *sqlx.Tx, events []model.DomainEvent) error {
	for _, ev := range events {
		t, ok := s.translators[ev.EventName()]
		if !ok {
			continue
		}
		out, err := t.Translate(ctx, tx, ev)
		if err != nil {
			metrics.TranslationFailures.WithLabelValues(ev.EventName()).Inc()
			return fmt.Errorf("translate %s: %w", ev.EventName(), err)
		}
		if err := s.outbox.PublishTx(ctx, tx, out); err != nil {
			return err
		}
	}
	return nil
}
