// Package integration holds the events that cross the broker, the
// translators that build them from committed domain changes and the
// handlers that react to them.
package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a flat, identifiers-only message. Type is the wire discriminator.
type Event interface {
	Type() string
	EventID() string
	// Key partitions the topic so events of one aggregate stay ordered.
	Key() string
}

// Meta is embedded by every event.
type Meta struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewMeta(now time.Time) Meta {
	return Meta{ID: uuid.NewString(), OccurredAt: now.UTC().Truncate(time.Second)}
}

func (m Meta) EventID() string { return m.ID }

const (
	TypeUserRegistered         = "UserRegistered"
	TypeFriendshipAccepted     = "FriendshipAccepted"
	TypeInvitationAccepted     = "InvitationAccepted"
	TypeGroupEventCancelled    = "GroupEventCancelled"
	TypeGroupEventRescheduled  = "GroupEventRescheduled"
	TypePersonalEventCancelled = "PersonalEventCancelled"
)

type UserRegistered struct {
	Meta
	UserID string `json:"user_id"`
}

func (UserRegistered) Type() string  { return TypeUserRegistered }
func (e UserRegistered) Key() string { return e.UserID }

type FriendshipAccepted struct {
	Meta
	FriendshipID string `json:"friendship_id"`
	RequesterID  string `json:"requester_id"`
	AddresseeID  string `json:"addressee_id"`
}

func (FriendshipAccepted) Type() string  { return TypeFriendshipAccepted }
func (e FriendshipAccepted) Key() string { return e.FriendshipID }

type InvitationAccepted struct {
	Meta
	InvitationID string `json:"invitation_id"`
	GroupEventID string `json:"group_event_id"`
	UserID       string `json:"user_id"`
}

func (InvitationAccepted) Type() string  { return TypeInvitationAccepted }
func (e InvitationAccepted) Key() string { return e.GroupEventID }

type GroupEventCancelled struct {
	Meta
	GroupEventID string `json:"group_event_id"`
}

func (GroupEventCancelled) Type() string  { return TypeGroupEventCancelled }
func (e GroupEventCancelled) Key() string { return e.GroupEventID }

type GroupEventRescheduled struct {
	Meta
	GroupEventID string `json:"group_event_id"`
}

func (GroupEventRescheduled) Type() string  { return TypeGroupEventRescheduled }
func (e GroupEventRescheduled) Key() string { return e.GroupEventID }

type PersonalEventCancelled struct {
	Meta
	PersonalEventID string `json:"personal_event_id"`
}

func (PersonalEventCancelled) Type() string  { return TypePersonalEventCancelled }
func (e PersonalEventCancelled) Key() string { return e.PersonalEventID }

// aggregates names the aggregate each event type belongs to.
var aggregates = map[string]string{
	TypeUserRegistered:         "user",
	TypeFriendshipAccepted:     "friendship",
	TypeInvitationAccepted:     "group_event",
	TypeGroupEventCancelled:    "group_event",
	TypeGroupEventRescheduled:  "group_event",
	TypePersonalEventCancelled: "personal_event",
}

var ErrUnknownType = errors.New("unknown integration event type")

var factories = map[string]func() Event{
	TypeUserRegistered:         func() Event { return &UserRegistered{} },
	TypeFriendshipAccepted:     func() Event { return &FriendshipAccepted{} },
	TypeInvitationAccepted:     func() Event { return &InvitationAccepted{} },
	TypeGroupEventCancelled:    func() Event { return &GroupEventCancelled{} },
	TypeGroupEventRescheduled:  func() Event { return &GroupEventRescheduled{} },
	TypePersonalEventCancelled: func() Event { return &PersonalEventCancelled{} },
}

// Encode serializes ev as one flat JSON object tagged with "type".
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	tag, _ := json.Marshal(ev.Type())
	fields["type"] = tag

	return json.Marshal(fields)
}

// Decode is the inverse of Encode. It returns a pointer to the concrete event
// type; unknown fields are ignored.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	newEvent, ok := factories[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}

	ev := newEvent()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return ev, nil
}
