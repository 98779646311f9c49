package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/mail"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"go.uber.org/zap"
)

// Handler reacts to one consumed event. A nil error lets the consumer commit.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

var ErrNoHandler = errors.New("no handler registered")

// Registry maps an event type to its handler.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(eventType string, h Handler) {
	r.handlers[eventType] = h
}

func (r *Registry) Lookup(eventType string) (Handler, bool) {
	h, ok := r.handlers[eventType]
	return h, ok
}

func (r *Registry) Handle(ctx context.Context, ev Event) error {
	h, ok := r.Lookup(ev.Type())
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoHandler, ev.Type())
	}
	return h.Handle(ctx, ev)
}

// typed adapts a handler of one concrete event type. Decode yields pointers.
func typed[T Event](fn func(ctx context.Context, ev T) error) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		e, ok := ev.(T)
		if !ok {
			return fmt.Errorf("handler for %s: unexpected %T", ev.Type(), ev)
		}
		return fn(ctx, e)
	})
}

// Handlers are the reactions of the notification service to integration events.
type Handlers struct {
	Users         repository.UsersRepository
	Groups        repository.GroupEventsRepository
	Personal      repository.PersonalEventsRepository
	Notifications repository.NotificationsRepository
	Mail          mail.Sender

	// AttendeeBatchSize pages attendees when mailing a cancellation.
	AttendeeBatchSize int
	Log               *zap.Logger
}

func (h *Handlers) Registry() *Registry {
	r := NewRegistry()
	r.Register(TypeUserRegistered, typed(h.userRegistered))
	r.Register(TypeFriendshipAccepted, typed(h.friendshipAccepted))
	r.Register(TypeInvitationAccepted, typed(h.invitationAccepted))
	r.Register(TypeGroupEventCancelled, typed(h.groupEventCancelled))
	r.Register(TypeGroupEventRescheduled, typed(h.groupEventRescheduled))
	r.Register(TypePersonalEventCancelled, typed(h.personalEventCancelled))
	return r
}

func (h *Handlers) userRegistered(ctx context.Context, ev *UserRegistered) error {
	u, err := h.Users.GetByID(ctx, nil, ev.UserID)
	if err != nil {
		return err
	}
	msg, err := mail.Welcome(*u)
	if err != nil {
		return err
	}
	return h.send(ctx, msg)
}

func (h *Handlers) friendshipAccepted(ctx context.Context, ev *FriendshipAccepted) error {
	requester, err := h.Users.GetByID(ctx, nil, ev.RequesterID)
	if err != nil {
		return err
	}
	addressee, err := h.Users.GetByID(ctx, nil, ev.AddresseeID)
	if err != nil {
		return err
	}
	msg, err := mail.FriendshipAccepted(*requester, *addressee)
	if err != nil {
		return err
	}
	return h.send(ctx, msg)
}

func (h *Handlers) invitationAccepted(ctx context.Context, ev *InvitationAccepted) error {
	group, err := h.Groups.GetByID(ctx, nil, ev.GroupEventID)
	if err != nil {
		return err
	}
	owner, err := h.Users.GetByID(ctx, nil, group.OwnerID)
	if err != nil {
		return err
	}
	attendee, err := h.Users.GetByID(ctx, nil, ev.UserID)
	if err != nil {
		return err
	}
	msg, err := mail.InvitationAccepted(*owner, *attendee, *group)
	if err != nil {
		return err
	}
	return h.send(ctx, msg)
}

// groupEventCancelled drops pending reminders and tells every attendee.
// A redelivery mails attendees again; removal is a no-op the second time.
func (h *Handlers) groupEventCancelled(ctx context.Context, ev *GroupEventCancelled) error {
	group, err := h.Groups.GetByID(ctx, nil, ev.GroupEventID)
	if err != nil {
		return err
	}
	if err := h.deletePending(ctx, model.EventKindGroup, group.ID); err != nil {
		return err
	}

	batch := h.AttendeeBatchSize
	if batch <= 0 {
		batch = 200
	}
	after := ""
	for {
		ids, err := h.Groups.Attendees(ctx, group.ID, after, batch)
		if err != nil {
			return fmt.Errorf("attendees of %s: %w", group.ID, err)
		}
		for _, id := range ids {
			u, err := h.Users.GetByID(ctx, nil, id)
			if err != nil {
				return err
			}
			msg, err := mail.EventCancelled(*u, *group)
			if err != nil {
				return err
			}
			if err := h.send(ctx, msg); err != nil {
				return err
			}
		}
		if len(ids) < batch {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

func (h *Handlers) groupEventRescheduled(ctx context.Context, ev *GroupEventRescheduled) error {
	if _, err := h.Groups.GetByID(ctx, nil, ev.GroupEventID); err != nil {
		return err
	}
	return h.deletePending(ctx, model.EventKindGroup, ev.GroupEventID)
}

func (h *Handlers) personalEventCancelled(ctx context.Context, ev *PersonalEventCancelled) error {
	if _, err := h.Personal.GetByID(ctx, nil, ev.PersonalEventID); err != nil {
		return err
	}
	return h.deletePending(ctx, model.EventKindPersonal, ev.PersonalEventID)
}

func (h *Handlers) deletePending(ctx context.Context, kind model.EventKind, eventID string) error {
	n, err := h.Notifications.DeletePending(ctx, nil, kind, eventID)
	if err != nil {
		return fmt.Errorf("delete pending %s %s: %w", kind, eventID, err)
	}
	logger.OrNop(h.Log).Info("pending notifications removed",
		zap.String("kind", kind.String()),
		zap.String("event_id", eventID),
		zap.Int64("removed", n),
	)
	return nil
}

func (h *Handlers) send(ctx context.Context, msg mail.Message) error {
	if err := h.Mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}
