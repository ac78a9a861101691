package users

import (
	"errors"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

// StoredUser is a user account as held by a backend.
type StoredUser struct {
	User
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepo stores accounts for the in-process exchange backend.
type UserRepo interface {
	Create(email, passwordHash string) (*StoredUser, error)
	GetByEmail(email string) (*StoredUser, error)
	GetByID(id int64) (*StoredUser, error)
	List(offset, limit int) ([]*StoredUser, error)
}
