package model

import "time"

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewUser builds a user and the event announcing its registration.
func NewUser(id, name, email string, now time.Time) (*User, DomainEvent) {
	u := &User{ID: id, Name: name, Email: email, CreatedAt: now}
	return u, UserRegistered{User: u}
}
