package repository

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

const maxLastErrorLen = 512

// NotificationsRepository persists reminder rows. The sent flag is written
// only by MarkSent, and only from false to true.
type NotificationsRepository interface {
	// Materialized returns the reminders already stored for the given events.
	Materialized(ctx context.Context, tx *sqlx.Tx, kind model.EventKind, eventIDs []string) (*model.Materialized, error)
	InsertBatch(ctx context.Context, tx *sqlx.Tx, rows []model.Notification) error
	// Due lists unsent rows scheduled at or before now, oldest first.
	// maxAttempts <= 0 disables the poison-row ceiling.
	Due(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.DueNotification, error)
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	RecordFailure(ctx context.Context, id string, cause error) error
	// DeletePending removes unsent rows for an event. Sent rows are delivery
	// records and are never removed.
	DeletePending(ctx context.Context, tx *sqlx.Tx, kind model.EventKind, eventID string) (int64, error)
}

type NotificationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewNotificationsRepository(db *sqlx.DB) *NotificationsRepositoryImpl {
	return &NotificationsRepositoryImpl{db: db}
}

var _ NotificationsRepository = (*NotificationsRepositoryImpl)(nil)

func (r *NotificationsRepositoryImpl) Materialized(ctx context.Context, tx *sqlx.Tx, kind model.EventKind, eventIDs []string) (*model.Materialized, error) {
	out := model.NewMaterialized()
	if len(eventIDs) == 0 {
		return out, nil
	}

	const base = `
		SELECT event_id, recipient_id, scheduled_at, sent
		  FROM notifications
		 WHERE event_kind = ? AND event_id IN (?)
	`
	query, args, err := sqlx.In(base, kind.String(), eventIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var rows []model.Notification
	if err := on(r.db, tx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, n := range rows {
		out.Add(n)
	}
	return out, nil
}

// InsertBatch writes all rows with a single multi-row INSERT.
func (r *NotificationsRepositoryImpl) InsertBatch(ctx context.Context, tx *sqlx.Tx, rows []model.Notification) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*7)

	sb.WriteString(`INSERT INTO notifications (id, event_kind, event_id, recipient_id, scheduled_at, created_at, sent) VALUES `)
	for i, n := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, n.ID, n.EventKind.String(), n.EventID, n.RecipientID, n.ScheduledAt.UTC(), n.CreatedAt.UTC(), false)
	}

	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, sb.String(), args...)
		return err
	})
}

func (r *NotificationsRepositoryImpl) Due(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.DueNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = math.MaxInt32
	}

	var rows []model.DueNotification
	err := r.db.SelectContext(ctx, &rows, `
		SELECT n.id, n.event_kind, n.event_id, n.recipient_id, n.scheduled_at, n.created_at,
		       n.sent, n.sent_at, n.attempts, n.last_error,
		       u.name  AS recipient_name,
		       u.email AS recipient_email,
		       COALESCE(g.title, p.title, '') AS event_title
		  FROM notifications n
		  JOIN users u ON u.id = n.recipient_id
		  LEFT JOIN group_events g ON n.event_kind = 'group' AND g.id = n.event_id
		  LEFT JOIN personal_events p ON n.event_kind = 'personal' AND p.id = n.event_id
		 WHERE n.sent = 0 AND n.scheduled_at <= ? AND n.attempts < ?
		 ORDER BY n.scheduled_at, n.id
		 LIMIT ?
	`, now.UTC(), maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSent flips sent for one row. It reports false if another writer got there first.
func (r *NotificationsRepositoryImpl) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		   SET sent = 1, sent_at = ?
		 WHERE id = ? AND sent = 0
	`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *NotificationsRepositoryImpl) RecordFailure(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		   SET attempts = attempts + 1, last_error = ?
		 WHERE id = ? AND sent = 0
	`, msg, id)
	return err
}

func (r *NotificationsRepositoryImpl) DeletePending(ctx context.Context, tx *sqlx.Tx, kind model.EventKind, eventID string) (int64, error) {
	res, err := on(r.db, tx).ExecContext(ctx, `
		DELETE FROM notifications
		 WHERE event_kind = ? AND event_id = ? AND sent = 0
	`, kind.String(), eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
