package users

import (
	"errors"
	"time"
)

// ErrNotFound is returned by all UserRepo implementations when no credential
// record matches.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateIdentifier is returned by Upsert when the email or phone is
// already claimed by another account.
var ErrDuplicateIdentifier = errors.New("identifier already registered")

// UserRepo is the persistence boundary for credential records. Lockout and
// failed-attempt state is store-backed so the hard stops stay consistent
// across server instances.
type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	GetByPhone(phone string) (*User, error)

	// RecordLoginFailure increments the failed-attempt counter as a
	// read-modify-write and applies the lockout when the threshold is hit.
	RecordLoginFailure(id string, lockThreshold int, lockFor time.Duration) (failedAttempts int, err error)

	// RecordLoginSuccess clears the counter and lockout and stamps the last
	// successful login.
	RecordLoginSuccess(id string) error

	// SetPassword replaces the stored hash and clears counter and lockout.
	SetPassword(id string, passwordHash string) error
}
