// Package testutil builds an in-memory SQLite store with the service schema
// for package tests. Production code never imports it.
package testutil

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
    id         TEXT NOT NULL PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
);
CREATE TABLE friendships (
    id           TEXT NOT NULL PRIMARY KEY,
    requester_id TEXT NOT NULL,
    addressee_id TEXT NOT NULL,
    status       TEXT NOT NULL,
    created_at   DATETIME NOT NULL,
    accepted_at  DATETIME NULL,
    UNIQUE (requester_id, addressee_id)
);
CREATE TABLE group_events (
    id         TEXT NOT NULL PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    title      TEXT NOT NULL,
    starts_at  DATETIME NOT NULL,
    cancelled  INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);
CREATE TABLE group_event_attendees (
    group_event_id TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    joined_at      DATETIME NOT NULL,
    PRIMARY KEY (group_event_id, user_id)
);
CREATE TABLE group_event_invitations (
    id             TEXT NOT NULL PRIMARY KEY,
    group_event_id TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    status         TEXT NOT NULL,
    created_at     DATETIME NOT NULL,
    UNIQUE (group_event_id, user_id)
);
CREATE TABLE personal_events (
    id         TEXT NOT NULL PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    title      TEXT NOT NULL,
    starts_at  DATETIME NOT NULL,
    cancelled  INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);
CREATE TABLE notifications (
    id           TEXT NOT NULL PRIMARY KEY,
    event_kind   TEXT NOT NULL,
    event_id     TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    scheduled_at DATETIME NOT NULL,
    created_at   DATETIME NOT NULL,
    sent         INTEGER NOT NULL DEFAULT 0,
    sent_at      DATETIME NULL,
    attempts     INTEGER NOT NULL DEFAULT 0,
    last_error   TEXT NULL,
    UNIQUE (event_kind, event_id, recipient_id, scheduled_at)
);
CREATE TABLE outbox (
    id           TEXT NOT NULL PRIMARY KEY,
    aggregate    TEXT NOT NULL,
    aggregate_id TEXT NOT NULL,
    event_type   TEXT NOT NULL,
    payload      BLOB NOT NULL,
    attempts     INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL,
    published_at DATETIME NULL
);
`

// NewDB opens an in-memory SQLite database with the schema applied. The pool
// is pinned to one connection because every :memory: connection is its own
// database.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:?_time_format=sqlite")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// Now is a whole-second UTC instant, matching DATETIME precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func InsertUser(t testing.TB, db *sqlx.DB, id, name, email string) {
	t.Helper()
	mustExec(t, db, `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		id, name, email, Now())
}

func InsertGroupEvent(t testing.TB, db *sqlx.DB, id, ownerID, title string, startsAt time.Time) {
	t.Helper()
	mustExec(t, db, `INSERT INTO group_events (id, owner_id, title, starts_at, cancelled, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		id, ownerID, title, startsAt.UTC(), Now())
}

func InsertPersonalEvent(t testing.TB, db *sqlx.DB, id, ownerID, title string, startsAt time.Time) {
	t.Helper()
	mustExec(t, db, `INSERT INTO personal_events (id, owner_id, title, starts_at, cancelled, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		id, ownerID, title, startsAt.UTC(), Now())
}

func AddAttendee(t testing.TB, db *sqlx.DB, eventID, userID string) {
	t.Helper()
	mustExec(t, db, `INSERT INTO group_event_attendees (group_event_id, user_id, joined_at) VALUES (?, ?, ?)`,
		eventID, userID, Now())
}

func InsertNotification(t testing.TB, db *sqlx.DB, id, kind, eventID, recipientID string, scheduledAt time.Time, sent bool) {
	t.Helper()
	var sentAt *time.Time
	if sent {
		ts := scheduledAt.UTC()
		sentAt = &ts
	}
	mustExec(t, db, `INSERT INTO notifications (id, event_kind, event_id, recipient_id, scheduled_at, created_at, sent, sent_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		id, kind, eventID, recipientID, scheduledAt.UTC(), Now(), sent, sentAt)
}

func Count(t testing.TB, db *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.Get(&n, query, args...); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func mustExec(t testing.TB, db *sqlx.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
