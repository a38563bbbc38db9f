package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown identifiers and wrong
	// passwords so the caller-visible message never leaks account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountLocked is surfaced distinctly: the account holder already
	// knows the account exists.
	ErrAccountLocked = errors.New("account temporarily locked")

	ErrRateLimited = errors.New("too many login attempts")
)
