package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveriesRepository is the append-only delivery log kept in ClickHouse.
type DeliveriesRepository interface {
	Append(ctx context.Context, rows []model.Delivery) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]model.Delivery, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) DeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

// Append writes one batch. clickhouse-go sends all rows of a prepared INSERT
// inside a transaction as a single block.
func (r *chDeliveriesRepository) Append(ctx context.Context, rows []model.Delivery) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reminder.deliveries
		    (notification_id, event_kind, event_id, recipient_id, email, scheduled_at, sent_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare delivery insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx,
			d.NotificationID, d.EventKind, d.EventID, d.RecipientID, d.Email,
			d.ScheduledAt.UTC(), d.SentAt.UTC(),
		); err != nil {
			return fmt.Errorf("append delivery %s: %w", d.NotificationID, err)
		}
	}
	return tx.Commit()
}

func (r *chDeliveriesRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]model.Delivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []model.Delivery
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT notification_id, event_kind, event_id, recipient_id, email, scheduled_at, sent_at
		  FROM reminder.deliveries FINAL
		 WHERE recipient_id = ?
		 ORDER BY sent_at DESC
		 LIMIT ? OFFSET ?
	`, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
