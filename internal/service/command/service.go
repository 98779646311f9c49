package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/util"
	"github.com/jmoiron/sqlx"
)

// Service holds the commands that feed the notification pipeline.
type Service struct {
	exec        *Executor
	users       repository.UsersRepository
	friendships repository.FriendshipsRepository
	groups      repository.GroupEventsRepository
	invitations repository.InvitationsRepository
	personal    repository.PersonalEventsRepository
	pending     repository.NotificationsRepository

	Now func() time.Time
}

func NewService(
	exec *Executor,
	users repository.UsersRepository,
	friendships repository.FriendshipsRepository,
	groups repository.GroupEventsRepository,
	invitations repository.InvitationsRepository,
	personal repository.PersonalEventsRepository,
	notifications repository.NotificationsRepository,
) *Service {
	return &Service{
		exec:        exec,
		users:       users,
		friendships: friendships,
		groups:      groups,
		invitations: invitations,
		personal:    personal,
		pending:     notifications,
		Now:         time.Now,
	}
}

func (s *Service) now() time.Time { return s.Now().UTC().Truncate(time.Second) }

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, model.ErrInvalidArgument)...)
}

func (s *Service) RegisterUser(ctx context.Context, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	addr := util.NormalizeEmail(email)
	if addr == "" {
		return nil, invalid("invalid email %q", email)
	}

	var out *model.User
	err := s.exec.Exec(ctx, "register_user", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		u, ev := model.NewUser(util.New(), name, addr, s.now())
		if err := s.users.Insert(ctx, tx, *u); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		rec.Record(ev)
		out = u
		return nil
	})
	return out, err
}

func (s *Service) RequestFriendship(ctx context.Context, requesterID, addresseeID string) (*model.Friendship, error) {
	if requesterID == addresseeID {
		return nil, invalid("cannot befriend yourself")
	}

	var out *model.Friendship
	err := s.exec.Exec(ctx, "request_friendship", func(ctx context.Context, tx *sqlx.Tx, _ *Recorder) error {
		for _, id := range []string{requesterID, addresseeID} {
			if _, err := s.users.GetByID(ctx, tx, id); err != nil {
				return err
			}
		}
		f := model.Friendship{
			ID:          util.New(),
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			Status:      model.FriendshipStatusPending,
			CreatedAt:   s.now(),
		}
		if err := s.friendships.Insert(ctx, tx, f); err != nil {
			return fmt.Errorf("insert friendship: %w", err)
		}
		out = &f
		return nil
	})
	return out, err
}

func (s *Service) AcceptFriendship(ctx context.Context, userID, friendshipID string) error {
	return s.exec.Exec(ctx, "accept_friendship", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		f, err := s.friendships.GetByID(ctx, tx, friendshipID)
		if err != nil {
			return err
		}
		ev, err := f.Accept(userID, s.now())
		if err != nil {
			return err
		}
		if err := s.friendships.SaveAccepted(ctx, tx, *f); err != nil {
			return err
		}
		rec.Record(ev)
		return nil
	})
}

// CreateGroupEvent stores the event with its owner as first attendee.
func (s *Service) CreateGroupEvent(ctx context.Context, ownerID, title string, startsAt time.Time) (*model.GroupEvent, error) {
	title, startsAt, err := validEvent(title, startsAt)
	if err != nil {
		return nil, err
	}

	var out *model.GroupEvent
	err = s.exec.Exec(ctx, "create_group_event", func(ctx context.Context, tx *sqlx.Tx, _ *Recorder) error {
		if _, err := s.users.GetByID(ctx, tx, ownerID); err != nil {
			return err
		}
		now := s.now()
		e := model.GroupEvent{ID: util.New(), OwnerID: ownerID, Title: title, StartsAt: startsAt, CreatedAt: now}
		if err := s.groups.Insert(ctx, tx, e); err != nil {
			return fmt.Errorf("insert group event: %w", err)
		}
		if err := s.groups.AddAttendee(ctx, tx, e.ID, ownerID, now); err != nil {
			return fmt.Errorf("add owner as attendee: %w", err)
		}
		out = &e
		return nil
	})
	return out, err
}

func (s *Service) Invite(ctx context.Context, ownerID, groupEventID, userID string) (*model.Invitation, error) {
	var out *model.Invitation
	err := s.exec.Exec(ctx, "invite", func(ctx context.Context, tx *sqlx.Tx, _ *Recorder) error {
		e, err := s.groups.GetByID(ctx, tx, groupEventID)
		if err != nil {
			return err
		}
		if e.OwnerID != ownerID {
			return fmt.Errorf("group event %s: %w", e.ID, model.ErrForbidden)
		}
		if e.Cancelled {
			return fmt.Errorf("group event %s is cancelled: %w", e.ID, model.ErrConflict)
		}
		if _, err := s.users.GetByID(ctx, tx, userID); err != nil {
			return err
		}
		inv := model.Invitation{
			ID:           util.New(),
			GroupEventID: e.ID,
			UserID:       userID,
			Status:       model.InvitationStatusPending,
			CreatedAt:    s.now(),
		}
		if err := s.invitations.Insert(ctx, tx, inv); err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
		out = &inv
		return nil
	})
	return out, err
}

func (s *Service) AcceptInvitation(ctx context.Context, userID, invitationID string) error {
	return s.exec.Exec(ctx, "accept_invitation", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		inv, err := s.invitations.GetByID(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		e, err := s.groups.GetByID(ctx, tx, inv.GroupEventID)
		if err != nil {
			return err
		}
		if e.Cancelled {
			return fmt.Errorf("group event %s is cancelled: %w", e.ID, model.ErrConflict)
		}
		ev, err := inv.Accept(userID)
		if err != nil {
			return err
		}
		if err := s.invitations.SaveAccepted(ctx, tx, inv.ID); err != nil {
			return err
		}
		rec.Record(ev)
		return nil
	})
}

func (s *Service) CancelGroupEvent(ctx context.Context, userID, groupEventID string) error {
	return s.exec.Exec(ctx, "cancel_group_event", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		e, err := s.groups.GetByID(ctx, tx, groupEventID)
		if err != nil {
			return err
		}
		ev, err := e.Cancel(userID)
		if err != nil {
			return err
		}
		if err := s.groups.SaveCancelled(ctx, tx, e.ID); err != nil {
			return err
		}
		if err := s.dropPending(ctx, tx, model.EventKindGroup, e.ID); err != nil {
			return err
		}
		rec.Record(ev)
		return nil
	})
}

func (s *Service) RescheduleGroupEvent(ctx context.Context, userID, groupEventID string, startsAt time.Time) error {
	if startsAt.IsZero() {
		return invalid("starts_at is required")
	}
	startsAt = startsAt.UTC().Truncate(time.Second)

	return s.exec.Exec(ctx, "reschedule_group_event", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		e, err := s.groups.GetByID(ctx, tx, groupEventID)
		if err != nil {
			return err
		}
		ev, err := e.Reschedule(userID, startsAt)
		if err != nil {
			return err
		}
		if err := s.groups.SaveStartsAt(ctx, tx, e.ID, e.StartsAt); err != nil {
			return err
		}
		if err := s.dropPending(ctx, tx, model.EventKindGroup, e.ID); err != nil {
			return err
		}
		rec.Record(ev)
		return nil
	})
}

func (s *Service) CreatePersonalEvent(ctx context.Context, ownerID, title string, startsAt time.Time) (*model.PersonalEvent, error) {
	title, startsAt, err := validEvent(title, startsAt)
	if err != nil {
		return nil, err
	}

	var out *model.PersonalEvent
	err = s.exec.Exec(ctx, "create_personal_event", func(ctx context.Context, tx *sqlx.Tx, _ *Recorder) error {
		if _, err := s.users.GetByID(ctx, tx, ownerID); err != nil {
			return err
		}
		e := model.PersonalEvent{ID: util.New(), OwnerID: ownerID, Title: title, StartsAt: startsAt, CreatedAt: s.now()}
		if err := s.personal.Insert(ctx, tx, e); err != nil {
			return fmt.Errorf("insert personal event: %w", err)
		}
		out = &e
		return nil
	})
	return out, err
}

func (s *Service) CancelPersonalEvent(ctx context.Context, userID, personalEventID string) error {
	return s.exec.Exec(ctx, "cancel_personal_event", func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error {
		e, err := s.personal.GetByID(ctx, tx, personalEventID)
		if err != nil {
			return err
		}
		ev, err := e.Cancel(userID)
		if err != nil {
			return err
		}
		if err := s.personal.SaveCancelled(ctx, tx, e.ID); err != nil {
			return err
		}
		if err := s.dropPending(ctx, tx, model.EventKindPersonal, e.ID); err != nil {
			return err
		}
		rec.Record(ev)
		return nil
	})
}

// dropPending removes reminders that no longer match the event, together with
// the change that outdated them. The consumer repeats this when it handles the
// integration event.
func (s *Service) dropPending(ctx context.Context, tx *sqlx.Tx, kind model.EventKind, eventID string) error {
	if s.pending == nil {
		return nil
	}
	if _, err := s.pending.DeletePending(ctx, tx, kind, eventID); err != nil {
		return fmt.Errorf("delete pending notifications: %w", err)
	}
	return nil
}

func validEvent(title string, startsAt time.Time) (string, time.Time, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", time.Time{}, invalid("title is required")
	}
	if startsAt.IsZero() {
		return "", time.Time{}, invalid("starts_at is required")
	}
	return title, startsAt.UTC().Truncate(time.Second), nil
}
