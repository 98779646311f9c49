package mail

import (
	"testing"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminder(t *testing.T) {
	at := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	msg, err := Reminder(model.DueNotification{
		Notification:   model.Notification{ScheduledAt: at},
		RecipientName:  "Ana",
		RecipientEmail: "ana@example.com",
		EventTitle:     "Board games",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Reminder: Board games", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ana,")
	assert.Contains(t, msg.Body, `"Board games" starts at Sat, 14 Mar 2026 18:30 UTC.`)
}

func TestEventMails(t *testing.T) {
	owner := model.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	guest := model.User{ID: "u2", Name: "Ben", Email: "ben@example.com"}
	ev := model.GroupEvent{ID: "g1", Title: "Hike", StartsAt: time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)}

	tests := []struct {
		name    string
		render  func() (Message, error)
		to      string
		subject string
		body    string
	}{
		{"welcome", func() (Message, error) { return Welcome(guest) }, "ben@example.com", "Welcome", "Hi Ben,"},
		{"friendship", func() (Message, error) { return FriendshipAccepted(owner, guest) }, "ana@example.com", "Ben is now your friend", "Ben accepted your friend request."},
		{"invitation", func() (Message, error) { return InvitationAccepted(owner, guest, ev) }, "ana@example.com", "Ben joined Hike", `Ben accepted your invitation to "Hike"`},
		{"cancelled", func() (Message, error) { return EventCancelled(guest, ev) }, "ben@example.com", "Cancelled: Hike", "has been cancelled."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.render()
			require.NoError(t, err)
			assert.Equal(t, tt.to, msg.To)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.Body, tt.body)
		})
	}
}
