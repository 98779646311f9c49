package model

import "time"

// DomainEvent is raised by an aggregate method and handled in-process after
// the surrounding transaction commits. It is never persisted.
type DomainEvent interface {
	EventName() string
}

const (
	EventUserRegistered         = "UserRegistered"
	EventFriendshipAccepted     = "FriendshipAccepted"
	EventInvitationAccepted     = "InvitationAccepted"
	EventGroupEventCancelled    = "GroupEventCancelled"
	EventGroupEventRescheduled  = "GroupEventRescheduled"
	EventPersonalEventCancelled = "PersonalEventCancelled"
)

type UserRegistered struct{ User *User }

func (UserRegistered) EventName() string { return EventUserRegistered }

type FriendshipAccepted struct{ Friendship *Friendship }

func (FriendshipAccepted) EventName() string { return EventFriendshipAccepted }

type InvitationAccepted struct{ Invitation *Invitation }

func (InvitationAccepted) EventName() string { return EventInvitationAccepted }

type GroupEventCancelled struct{ Event *GroupEvent }

func (GroupEventCancelled) EventName() string { return EventGroupEventCancelled }

type GroupEventRescheduled struct {
	Event         *GroupEvent
	PreviousStart time.Time
}

func (GroupEventRescheduled) EventName() string { return EventGroupEventRescheduled }

type PersonalEventCancelled struct{ Event *PersonalEvent }

func (PersonalEventCancelled) EventName() string { return EventPersonalEventCancelled }
