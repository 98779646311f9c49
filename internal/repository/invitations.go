package repository

import (
	"context"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

type InvitationsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invitation) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Invitation, error)
	SaveAccepted(ctx context.Context, tx *sqlx.Tx, id string) error
}

type InvitationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewInvitationsRepository(db *sqlx.DB) *InvitationsRepositoryImpl {
	return &InvitationsRepositoryImpl{db: db}
}

var _ InvitationsRepository = (*InvitationsRepositoryImpl)(nil)

func (r *InvitationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, inv model.Invitation) error {
	const q = `
		INSERT INTO group_event_invitations (id, group_event_id, user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, inv.ID, inv.GroupEventID, inv.UserID, inv.Status, inv.CreatedAt.UTC())
		return err
	})
}

func (r *InvitationsRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Invitation, error) {
	var inv model.Invitation
	err := on(r.db, tx).GetContext(ctx, &inv, `
		SELECT id, group_event_id, user_id, status, created_at
		  FROM group_event_invitations
		 WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err, "invitation", id)
	}
	return &inv, nil
}

func (r *InvitationsRepositoryImpl) SaveAccepted(ctx context.Context, tx *sqlx.Tx, id string) error {
	const q = `UPDATE group_event_invitations SET status = ? WHERE id = ? AND status = ?`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, model.InvitationStatusAccepted, id, model.InvitationStatusPending)
		if err != nil {
			return err
		}
		return exactlyOne(res, "invitation", id)
	})
}
