package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Translator turns one kind of domain event into the integration event
// announced to other processes. tx is the command's transaction when the
// event is staged before commit, nil after commit.
type Translator interface {
	Handles() string
	Translate(ctx context.Context, tx *sqlx.Tx, ev model.DomainEvent) (Event, error)
}

type translator[T model.DomainEvent] struct {
	name string
	fn   func(ctx context.Context, tx *sqlx.Tx, ev T) (Event, error)
}

func (t translator[T]) Handles() string { return t.name }

func (t translator[T]) Translate(ctx context.Context, tx *sqlx.Tx, ev model.DomainEvent) (Event, error) {
	typed, ok := ev.(T)
	if !ok {
		return nil, fmt.Errorf("translator %s: unexpected %T", t.name, ev)
	}
	return t.fn(ctx, tx, typed)
}

// Translators returns one translator per domain event. The InvitationAccepted
// translator also records the attendee: in tx when given, otherwise in its
// own transaction.
func Translators(groups repository.GroupEventsRepository, now func() time.Time) []Translator {
	if now == nil {
		now = time.Now
	}

	return []Translator{
		translator[model.UserRegistered]{
			name: model.EventUserRegistered,
			fn: func(_ context.Context, _ *sqlx.Tx, ev model.UserRegistered) (Event, error) {
				return &UserRegistered{Meta: NewMeta(now()), UserID: ev.User.ID}, nil
			},
		},
		translator[model.FriendshipAccepted]{
			name: model.EventFriendshipAccepted,
			fn: func(_ context.Context, _ *sqlx.Tx, ev model.FriendshipAccepted) (Event, error) {
				f := ev.Friendship
				return &FriendshipAccepted{
					Meta:         NewMeta(now()),
					FriendshipID: f.ID,
					RequesterID:  f.RequesterID,
					AddresseeID:  f.AddresseeID,
				}, nil
			},
		},
		translator[model.InvitationAccepted]{
			name: model.EventInvitationAccepted,
			fn: func(ctx context.Context, tx *sqlx.Tx, ev model.InvitationAccepted) (Event, error) {
				inv := ev.Invitation
				if err := groups.AddAttendee(ctx, tx, inv.GroupEventID, inv.UserID, now().UTC()); err != nil {
					return nil, fmt.Errorf("add attendee %s to %s: %w", inv.UserID, inv.GroupEventID, err)
				}
				return &InvitationAccepted{
					Meta:         NewMeta(now()),
					InvitationID: inv.ID,
					GroupEventID: inv.GroupEventID,
					UserID:       inv.UserID,
				}, nil
			},
		},
		translator[model.GroupEventCancelled]{
			name: model.EventGroupEventCancelled,
			fn: func(_ context.Context, _ *sqlx.Tx, ev model.GroupEventCancelled) (Event, error) {
				return &GroupEventCancelled{Meta: NewMeta(now()), GroupEventID: ev.Event.ID}, nil
			},
		},
		translator[model.GroupEventRescheduled]{
			name: model.EventGroupEventRescheduled,
			fn: func(_ context.Context, _ *sqlx.Tx, ev model.GroupEventRescheduled) (Event, error) {
				return &GroupEventRescheduled{Meta: NewMeta(now()), GroupEventID: ev.Event.ID}, nil
			},
		},
		translator[model.PersonalEventCancelled]{
			name: model.EventPersonalEventCancelled,
			fn: func(_ context.Context, _ *sqlx.Tx, ev model.PersonalEventCancelled) (Event, error) {
				return &PersonalEventCancelled{Meta: NewMeta(now()), PersonalEventID: ev.Event.ID}, nil
			},
		},
	}
}

// DomainDispatcher translates and publishes domain events after their
// transaction committed. Failures stay here: they are logged and counted,
// never returned to the command that raised the event.
type DomainDispatcher struct {
	publisher   Publisher
	translators map[string]Translator
	log         *zap.Logger
}

func NewDomainDispatcher(publisher Publisher, log *zap.Logger, translators ...Translator) *DomainDispatcher {
	d := &DomainDispatcher{
		publisher:   publisher,
		translators: make(map[string]Translator, len(translators)),
		log:         logger.OrNop(log),
	}
	for _, t := range translators {
		d.translators[t.Handles()] = t
	}
	return d
}

func (d *DomainDispatcher) Dispatch(ctx context.Context, events []model.DomainEvent) {
	for _, ev := range events {
		if err := d.dispatchOne(ctx, ev); err != nil {
			metrics.TranslationFailures.WithLabelValues(ev.EventName()).Inc()
			d.log.Error("domain event not published",
				zap.String("event", ev.EventName()),
				zap.Error(err),
			)
		}
	}
}

func (d *DomainDispatcher) dispatchOne(ctx context.Context, ev model.DomainEvent) (err error) {
	t, ok := d.translators[ev.EventName()]
	if !ok {
		d.log.Debug("no translator for domain event", zap.String("event", ev.EventName()))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("translator %s panicked: %v", t.Handles(), r)
		}
	}()

	out, err := t.Translate(ctx, nil, ev)
	if err != nil {
		return err
	}
	if err := d.publisher.Publish(ctx, out); err != nil {
		return fmt.Errorf("publish %s: %w", out.Type(), err)
	}

	d.log.Debug("integration event published",
		zap.String("type", out.Type()),
		zap.String("id", out.EventID()),
	)
	return nil
}
