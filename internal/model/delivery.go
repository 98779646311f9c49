package model

import "time"

// Delivery is one successfully sent reminder, appended to the analytics store.
type Delivery struct {
	NotificationID string    `db:"notification_id" json:"notification_id"`
	EventKind      string    `db:"event_kind" json:"event_kind"`
	EventID        string    `db:"event_id" json:"event_id"`
	RecipientID    string    `db:"recipient_id" json:"recipient_id"`
	Email          string    `db:"email" json:"email"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduled_at"`
	SentAt         time.Time `db:"sent_at" json:"sent_at"`
}
