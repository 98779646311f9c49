package repository

import (
	"context"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
)

type UsersRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, u model.User) error
	GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.User, error)
}

type UsersRepositoryImpl struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

func (r *UsersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, u model.User) error {
	const q = `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, u.ID, u.Name, u.Email, u.CreatedAt.UTC())
		return err
	})
}

func (r *UsersRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.User, error) {
	var u model.User
	err := on(r.db, tx).GetContext(ctx, &u, `
		SELECT id, name, email, created_at
		  FROM users
		 WHERE id = ?
	`, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}
