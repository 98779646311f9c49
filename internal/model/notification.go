package model

import "time"

// Notification is a reminder to send at or after ScheduledAt unless already sent.
// Sent only ever moves false -> true.
type Notification struct {
	ID          string     `db:"id" json:"id"`
	EventKind   EventKind  `db:"event_kind" json:"event_kind"`
	EventID     string     `db:"event_id" json:"event_id"`
	RecipientID string     `db:"recipient_id" json:"recipient_id"`
	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Sent        bool       `db:"sent" json:"sent"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at"`
	Attempts    int        `db:"attempts" json:"attempts"`
	LastError   *string    `db:"last_error" json:"last_error"`
}

// Key identifies one occurrence of an event for one recipient.
func (n Notification) Key() NotificationKey {
	return NotificationKey{EventID: n.EventID, RecipientID: n.RecipientID, ScheduledAt: n.ScheduledAt.UTC().Unix()}
}

type NotificationKey struct {
	EventID     string
	RecipientID string
	ScheduledAt int64 // unix seconds, stores keep second precision
}

type recipientKey struct {
	EventID     string
	RecipientID string
}

// Materialized is what a producer must not create again for a page of
// events: every stored occurrence, and every (event, recipient) that still
// has an unsent reminder, whatever its time.
type Materialized struct {
	occurrences map[NotificationKey]struct{}
	pending     map[recipientKey]struct{}
}

func NewMaterialized() *Materialized {
	return &Materialized{
		occurrences: make(map[NotificationKey]struct{}),
		pending:     make(map[recipientKey]struct{}),
	}
}

func (m *Materialized) Add(n Notification) {
	m.occurrences[n.Key()] = struct{}{}
	if !n.Sent {
		m.pending[recipientKey{n.EventID, n.RecipientID}] = struct{}{}
	}
}

// Has reports whether n duplicates a stored occurrence or would become a
// second unsent reminder for its recipient.
func (m *Materialized) Has(n Notification) bool {
	if _, ok := m.occurrences[n.Key()]; ok {
		return true
	}
	_, ok := m.pending[recipientKey{n.EventID, n.RecipientID}]
	return ok
}

func (m *Materialized) Len() int { return len(m.occurrences) }

// DueNotification is a notification joined with what is needed to render it.
type DueNotification struct {
	Notification
	RecipientName  string `db:"recipient_name" json:"recipient_name"`
	RecipientEmail string `db:"recipient_email" json:"recipient_email"`
	EventTitle     string `db:"event_title" json:"event_title"`
}
