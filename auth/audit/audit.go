// Package audit records login attempts. The log is append-only and write-only
// from the authentication core's perspective; reporting reads it elsewhere.
package audit

import (
	"context"
	"time"
)

// Failure reasons recorded with unsuccessful attempts.
const (
	ReasonRateLimited     = "rate limit exceeded"
	ReasonUserNotFound    = "user not found"
	ReasonAccountLocked   = "account locked"
	ReasonInvalidPassword = "invalid password"
)

// Attempt is one login attempt, successful or not. UserID and Identifier are
// nullable: a rate-limited or unknown-identifier attempt has no user.
type Attempt struct {
	ID         string
	UserID     *string
	Identifier *string
	IP         string
	UserAgent  string
	Success    bool
	Reason     string // empty on success
	CreatedAt  time.Time
}

// Recorder appends attempts. A Recorder failure must never abort the login
// flow; callers log and continue.
type Recorder interface {
	Record(ctx context.Context, attempt *Attempt) error
}
