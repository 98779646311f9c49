package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendshipAccept(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	f := &Friendship{ID: "f1", RequesterID: "a", AddresseeID: "b", Status: FriendshipStatusPending}

	_, err := f.Accept("a", now)
	require.ErrorIs(t, err, ErrForbidden)

	ev, err := f.Accept("b", now)
	require.NoError(t, err)
	assert.Equal(t, FriendshipAccepted{Friendship: f}, ev)
	assert.Equal(t, FriendshipStatusAccepted, f.Status)
	require.NotNil(t, f.AcceptedAt)
	assert.Equal(t, now, *f.AcceptedAt)

	_, err = f.Accept("b", now)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGroupEventCancelAndReschedule(t *testing.T) {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	e := &GroupEvent{ID: "g1", OwnerID: "owner", StartsAt: start}

	_, err := e.Reschedule("guest", start.Add(time.Hour))
	require.ErrorIs(t, err, ErrForbidden)

	ev, err := e.Reschedule("owner", start.Add(time.Hour))
	require.NoError(t, err)
	moved, ok := ev.(GroupEventRescheduled)
	require.True(t, ok)
	assert.Equal(t, start, moved.PreviousStart)
	assert.Equal(t, start.Add(time.Hour), e.StartsAt)

	_, err = e.Cancel("guest")
	require.ErrorIs(t, err, ErrForbidden)
	assert.False(t, e.Cancelled)

	ev, err = e.Cancel("owner")
	require.NoError(t, err)
	assert.Equal(t, EventGroupEventCancelled, ev.EventName())
	assert.True(t, e.Cancelled)

	_, err = e.Cancel("owner")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.Reschedule("owner", start)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPersonalEventCancel(t *testing.T) {
	e := &PersonalEvent{ID: "p1", OwnerID: "owner"}

	_, err := e.Cancel("someone")
	require.ErrorIs(t, err, ErrForbidden)

	ev, err := e.Cancel("owner")
	require.NoError(t, err)
	assert.Equal(t, PersonalEventCancelled{Event: e}, ev)

	_, err = e.Cancel("owner")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInvitationAccept(t *testing.T) {
	inv := &Invitation{ID: "i1", GroupEventID: "g1", UserID: "guest", Status: InvitationStatusPending}

	_, err := inv.Accept("other")
	require.ErrorIs(t, err, ErrForbidden)

	ev, err := inv.Accept("guest")
	require.NoError(t, err)
	assert.Equal(t, InvitationAccepted{Invitation: inv}, ev)
	assert.Equal(t, InvitationStatusAccepted, inv.Status)

	_, err = inv.Accept("guest")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestParseEventKind(t *testing.T) {
	k, ok := ParseEventKind(" Group ")
	assert.True(t, ok)
	assert.Equal(t, EventKindGroup, k)

	_, ok = ParseEventKind("weekly")
	assert.False(t, ok)
}

func TestNewUserRaisesRegistration(t *testing.T) {
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	u, ev := NewUser("u1", "Ana", "ana@example.com", now)
	assert.Equal(t, UserRegistered{User: u}, ev)
	assert.Equal(t, now, u.CreatedAt)
}
