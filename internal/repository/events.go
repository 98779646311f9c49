package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

// Cursor is a keyset position in (starts_at, id) order. The zero value starts
// at the beginning of the window.
type Cursor struct {
	StartsAt time.Time
	ID       string
}

func (c Cursor) IsZero() bool { return c.ID == "" && c.StartsAt.IsZero() }

// After returns the cursor positioned on ev.
func After(ev model.UpcomingEvent) Cursor {
	return Cursor{StartsAt: ev.StartsAt, ID: ev.ID}
}

type GroupEventsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.GroupEvent) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.GroupEvent, error)
	SaveCancelled(ctx context.Context, tx *sqlx.Tx, id string) error
	SaveStartsAt(ctx context.Context, tx *sqlx.Tx, id string, startsAt time.Time) error
	Upcoming(ctx context.Context, from, to time.Time, after Cursor, limit int) ([]model.UpcomingEvent, error)

	AddAttendee(ctx context.Context, tx *sqlx.Tx, eventID, userID string, at time.Time) error
	// Attendees returns up to limit attendee user ids greater than afterUserID.
	Attendees(ctx context.Context, eventID, afterUserID string, limit int) ([]string, error)
}

type PersonalEventsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.PersonalEvent) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.PersonalEvent, error)
	SaveCancelled(ctx context.Context, tx *sqlx.Tx, id string) error
	Upcoming(ctx context.Context, from, to time.Time, after Cursor, limit int) ([]model.UpcomingEvent, error)
}

type GroupEventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewGroupEventsRepository(db *sqlx.DB) *GroupEventsRepositoryImpl {
	return &GroupEventsRepositoryImpl{db: db}
}

var _ GroupEventsRepository = (*GroupEventsRepositoryImpl)(nil)

func (r *GroupEventsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.GroupEvent) error {
	const q = `
		INSERT INTO group_events (id, owner_id, title, starts_at, cancelled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, e.ID, e.OwnerID, e.Title, e.StartsAt.UTC(), e.Cancelled, e.CreatedAt.UTC())
		return err
	})
}

func (r *GroupEventsRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.GroupEvent, error) {
	var e model.GroupEvent
	err := on(r.db, tx).GetContext(ctx, &e, `
		SELECT id, owner_id, title, starts_at, cancelled, created_at
		  FROM group_events
		 WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err, "group event", id)
	}
	return &e, nil
}

func (r *GroupEventsRepositoryImpl) SaveCancelled(ctx context.Context, tx *sqlx.Tx, id string) error {
	return saveCancelled(ctx, r.db, tx, "group_events", "group event", id)
}

func (r *GroupEventsRepositoryImpl) SaveStartsAt(ctx context.Context, tx *sqlx.Tx, id string, startsAt time.Time) error {
	const q = `UPDATE group_events SET starts_at = ? WHERE id = ? AND cancelled = 0`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, startsAt.UTC(), id)
		if err != nil {
			return err
		}
		return exactlyOne(res, "group event", id)
	})
}

func (r *GroupEventsRepositoryImpl) Upcoming(ctx context.Context, from, to time.Time, after Cursor, limit int) ([]model.UpcomingEvent, error) {
	return upcoming(ctx, r.db, "group_events", from, to, after, limit)
}

// AddAttendee is idempotent: joining twice leaves one row.
func (r *GroupEventsRepositoryImpl) AddAttendee(ctx context.Context, tx *sqlx.Tx, eventID, userID string, at time.Time) error {
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		var n int
		err := tx.GetContext(ctx, &n, `
			SELECT COUNT(*) FROM group_event_attendees
			 WHERE group_event_id = ? AND user_id = ?
		`, eventID, userID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_event_attendees (group_event_id, user_id, joined_at)
			VALUES (?, ?, ?)
		`, eventID, userID, at.UTC())
		return err
	})
}

func (r *GroupEventsRepositoryImpl) Attendees(ctx context.Context, eventID, afterUserID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id
		  FROM group_event_attendees
		 WHERE group_event_id = ? AND user_id > ?
		 ORDER BY user_id
		 LIMIT ?
	`, eventID, afterUserID, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type PersonalEventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewPersonalEventsRepository(db *sqlx.DB) *PersonalEventsRepositoryImpl {
	return &PersonalEventsRepositoryImpl{db: db}
}

var _ PersonalEventsRepository = (*PersonalEventsRepositoryImpl)(nil)

func (r *PersonalEventsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.PersonalEvent) error {
	const q = `
		INSERT INTO personal_events (id, owner_id, title, starts_at, cancelled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, e.ID, e.OwnerID, e.Title, e.StartsAt.UTC(), e.Cancelled, e.CreatedAt.UTC())
		return err
	})
}

func (r *PersonalEventsRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.PersonalEvent, error) {
	var e model.PersonalEvent
	err := on(r.db, tx).GetContext(ctx, &e, `
		SELECT id, owner_id, title, starts_at, cancelled, created_at
		  FROM personal_events
		 WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err, "personal event", id)
	}
	return &e, nil
}

func (r *PersonalEventsRepositoryImpl) SaveCancelled(ctx context.Context, tx *sqlx.Tx, id string) error {
	return saveCancelled(ctx, r.db, tx, "personal_events", "personal event", id)
}

func (r *PersonalEventsRepositoryImpl) Upcoming(ctx context.Context, from, to time.Time, after Cursor, limit int) ([]model.UpcomingEvent, error) {
	return upcoming(ctx, r.db, "personal_events", from, to, after, limit)
}

func saveCancelled(ctx context.Context, db *sqlx.DB, tx *sqlx.Tx, table, entity, id string) error {
	q := fmt.Sprintf(`UPDATE %s SET cancelled = 1 WHERE id = ? AND cancelled = 0`, table)
	return withTx(ctx, db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, id)
		if err != nil {
			return err
		}
		return exactlyOne(res, entity, id)
	})
}

// upcoming pages through non-cancelled events whose start lies in [from, to],
// both bounds inclusive, in (starts_at, id) order strictly after the cursor.
func upcoming(ctx context.Context, db *sqlx.DB, table string, from, to time.Time, after Cursor, limit int) ([]model.UpcomingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if after.IsZero() {
		after = Cursor{StartsAt: from}
	}

	q := fmt.Sprintf(`
		SELECT id, owner_id, starts_at
		  FROM %s
		 WHERE cancelled = 0
		   AND starts_at >= ? AND starts_at <= ?
		   AND (starts_at > ? OR (starts_at = ? AND id > ?))
		 ORDER BY starts_at, id
		 LIMIT ?
	`, table)

	var rows []model.UpcomingEvent
	err := db.SelectContext(ctx, &rows, q,
		from.UTC(), to.UTC(),
		after.StartsAt.UTC(), after.StartsAt.UTC(), after.ID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
