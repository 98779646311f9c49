package repository

import (
	"context"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

type FriendshipsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, f model.Friendship) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Friendship, error)
	// SaveAccepted persists an accepted friendship; it fails with ErrConflict
	// if the row was no longer pending.
	SaveAccepted(ctx context.Context, tx *sqlx.Tx, f model.Friendship) error
}

type FriendshipsRepositoryImpl struct {
	db *sqlx.DB
}

func NewFriendshipsRepository(db *sqlx.DB) *FriendshipsRepositoryImpl {
	return &FriendshipsRepositoryImpl{db: db}
}

var _ FriendshipsRepository = (*FriendshipsRepositoryImpl)(nil)

func (r *FriendshipsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, f model.Friendship) error {
	const q = `
		INSERT INTO friendships (id, requester_id, addressee_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, f.ID, f.RequesterID, f.AddresseeID, f.Status, f.CreatedAt.UTC())
		return err
	})
}

func (r *FriendshipsRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Friendship, error) {
	var f model.Friendship
	err := on(r.db, tx).GetContext(ctx, &f, `
		SELECT id, requester_id, addressee_id, status, created_at, accepted_at
		  FROM friendships
		 WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err, "friendship", id)
	}
	return &f, nil
}

func (r *FriendshipsRepositoryImpl) SaveAccepted(ctx context.Context, tx *sqlx.Tx, f model.Friendship) error {
	const q = `
		UPDATE friendships
		   SET status = ?, accepted_at = ?
		 WHERE id = ? AND status = ?
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, model.FriendshipStatusAccepted, f.AcceptedAt.UTC(), f.ID, model.FriendshipStatusPending)
		if err != nil {
			return err
		}
		return exactlyOne(res, "friendship", f.ID)
	})
}
