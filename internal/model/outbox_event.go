package model

import "time"

type OutboxEvent struct {
	ID          string     `db:"id"`
	Aggregate   string     `db:"aggregate"`    // e.g. "group_event"
	AggregateID string     `db:"aggregate_id"` // id carried by the event
	EventType   string     `db:"event_type"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
}
