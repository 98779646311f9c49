package model

import (
	"fmt"
	"strings"
	"time"
)

// EventKind tells which table a notification's subject event lives in.
type EventKind string

const (
	EventKindGroup    EventKind = "group"
	EventKindPersonal EventKind = "personal"
)

func (k EventKind) String() string { return string(k) }

func (k EventKind) Valid() bool {
	return k == EventKindGroup || k == EventKindPersonal
}

// ParseEventKind normalizes input. Returns (value, true) if valid.
func ParseEventKind(s string) (EventKind, bool) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

type GroupEvent struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Cancelled bool      `db:"cancelled" json:"cancelled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (e *GroupEvent) Cancel(userID string) (DomainEvent, error) {
	if userID != e.OwnerID {
		return nil, fmt.Errorf("group event %s: %w", e.ID, ErrForbidden)
	}
	if e.Cancelled {
		return nil, fmt.Errorf("group event %s already cancelled: %w", e.ID, ErrConflict)
	}
	e.Cancelled = true
	return GroupEventCancelled{Event: e}, nil
}

func (e *GroupEvent) Reschedule(userID string, startsAt time.Time) (DomainEvent, error) {
	if userID != e.OwnerID {
		return nil, fmt.Errorf("group event %s: %w", e.ID, ErrForbidden)
	}
	if e.Cancelled {
		return nil, fmt.Errorf("group event %s is cancelled: %w", e.ID, ErrConflict)
	}
	prev := e.StartsAt
	e.StartsAt = startsAt
	return GroupEventRescheduled{Event: e, PreviousStart: prev}, nil
}

type PersonalEvent struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Cancelled bool      `db:"cancelled" json:"cancelled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (e *PersonalEvent) Cancel(userID string) (DomainEvent, error) {
	if userID != e.OwnerID {
		return nil, fmt.Errorf("personal event %s: %w", e.ID, ErrForbidden)
	}
	if e.Cancelled {
		return nil, fmt.Errorf("personal event %s already cancelled: %w", e.ID, ErrConflict)
	}
	e.Cancelled = true
	return PersonalEventCancelled{Event: e}, nil
}

type Attendee struct {
	GroupEventID string    `db:"group_event_id" json:"group_event_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
)

type Invitation struct {
	ID           string           `db:"id" json:"id"`
	GroupEventID string           `db:"group_event_id" json:"group_event_id"`
	UserID       string           `db:"user_id" json:"user_id"`
	Status       InvitationStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// Accept marks the invitation accepted. The attendee row is written by the
// InvitationAccepted handler, not here.
func (i *Invitation) Accept(userID string) (DomainEvent, error) {
	if userID != i.UserID {
		return nil, fmt.Errorf("invitation %s: %w", i.ID, ErrForbidden)
	}
	if i.Status != InvitationStatusPending {
		return nil, fmt.Errorf("invitation %s is %s: %w", i.ID, i.Status, ErrConflict)
	}
	i.Status = InvitationStatusAccepted
	return InvitationAccepted{Invitation: i}, nil
}

// UpcomingEvent is the producer's view of a group or personal event.
type UpcomingEvent struct {
	ID       string    `db:"id" json:"id"`
	OwnerID  string    `db:"owner_id" json:"owner_id"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
}
