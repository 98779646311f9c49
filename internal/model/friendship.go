package model

import (
	"fmt"
	"time"
)

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

type Friendship struct {
	ID          string           `db:"id" json:"id"`
	RequesterID string           `db:"requester_id" json:"requester_id"`
	AddresseeID string           `db:"addressee_id" json:"addressee_id"`
	Status      FriendshipStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	AcceptedAt  *time.Time       `db:"accepted_at" json:"accepted_at"`
}

// Accept moves a pending request to accepted. Only the addressee may accept.
func (f *Friendship) Accept(userID string, now time.Time) (DomainEvent, error) {
	if userID != f.AddresseeID {
		return nil, fmt.Errorf("friendship %s: %w", f.ID, ErrForbidden)
	}
	if f.Status != FriendshipStatusPending {
		return nil, fmt.Errorf("friendship %s is %s: %w", f.ID, f.Status, ErrConflict)
	}
	f.Status = FriendshipStatusAccepted
	f.AcceptedAt = &now
	return FriendshipAccepted{Friendship: f}, nil
}
