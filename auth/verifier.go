// Package auth implements the credential verifier: password verification,
// per-identifier rate limiting and account lockout, with an append-only audit
// trail of every outcome.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/mindwell-app/mindwell-server/auth/audit"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultLoginCeiling     = 5
	defaultLoginWindow      = 15 * time.Minute
)

// Identity is what a successful authentication hands to the session layer.
type Identity struct {
	ID              string
	DisplayName     string
	EmailVerifiedAt *time.Time
	PhoneVerifiedAt *time.Time
}

// RequestContext carries the request origin recorded with every attempt.
type RequestContext struct {
	IP        string
	UserAgent string
}

// Verifier validates credentials against stored hashes. Rate limiting and
// lockout are independent layers: the limiter throttles request volume
// regardless of outcome, the lockout punishes repeated wrong passwords
// against one account. Both are always active.
type Verifier struct {
	users   users.UserRepo
	audit   audit.Recorder
	limiter *ratelimit.Limiter

	lockoutThreshold int
	lockoutDuration  time.Duration
	loginCeiling     int
	loginWindow      time.Duration
	nowTime          func() time.Time
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

// WithLockoutPolicy overrides the failed-attempt threshold and lock duration.
func WithLockoutPolicy(threshold int, duration time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.lockoutThreshold = threshold
		v.lockoutDuration = duration
	}
}

// WithLoginRateLimit overrides the per-identifier attempt ceiling and window.
func WithLoginRateLimit(ceiling int, window time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.loginCeiling = ceiling
		v.loginWindow = window
	}
}

// NewVerifier initializes a Verifier with required dependencies. Optional
// configuration can be provided via options (e.g., WithNowTime for testing).
func NewVerifier(userRepo users.UserRepo, recorder audit.Recorder, limiter *ratelimit.Limiter, options ...VerifierOption) (*Verifier, error) {
	if userRepo == nil {
		return nil, errors.New("[NewVerifier] user repo is required")
	}
	if recorder == nil {
		return nil, errors.New("[NewVerifier] audit recorder is required")
	}
	if limiter == nil {
		return nil, errors.New("[NewVerifier] rate limiter is required")
	}

	v := &Verifier{
		users:            userRepo,
		audit:            recorder,
		limiter:          limiter,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
		loginCeiling:     defaultLoginCeiling,
		loginWindow:      defaultLoginWindow,
		nowTime:          time.Now,
	}

	for _, opt := range options {
		opt(v)
	}

	return v, nil
}

// Authenticate checks identifier and password and returns the account's
// Identity on success. Failures map to ErrRateLimited, ErrAccountLocked or
// ErrInvalidCredentials; anything else is a store failure and must surface as
// a server error, never as access granted.
func (v *Verifier) Authenticate(ctx context.Context, identifier, password string, reqCtx RequestContext) (*Identity, error) {
	identifier = normalizeIdentifier(identifier)

	if !v.limiter.Allow(ctx, ratelimit.LoginKey(identifier), v.loginCeiling, v.loginWindow) {
		v.recordAttempt(ctx, nil, identifier, reqCtx, false, audit.ReasonRateLimited)
		return nil, ErrRateLimited
	}

	user, err := v.lookup(identifier)
	if err != nil {
		return nil, errors.Wrap(err, "[Verifier.Authenticate] lookup")
	}

	// Unknown identifier and passwordless (externally verified) accounts fail
	// with the same error as a wrong password.
	if user == nil || !user.HasPassword() {
		v.recordAttempt(ctx, user, identifier, reqCtx, false, audit.ReasonUserNotFound)
		return nil, ErrInvalidCredentials
	}

	if user.Locked(v.nowTime()) {
		v.recordAttempt(ctx, user, identifier, reqCtx, false, audit.ReasonAccountLocked)
		return nil, ErrAccountLocked
	}

	if !users.CheckPasswordHash(password, *user.PasswordHash) {
		if _, err := v.users.RecordLoginFailure(user.ID, v.lockoutThreshold, v.lockoutDuration); err != nil {
			return nil, errors.Wrap(err, "[Verifier.Authenticate] RecordLoginFailure")
		}
		v.recordAttempt(ctx, user, identifier, reqCtx, false, audit.ReasonInvalidPassword)
		return nil, ErrInvalidCredentials
	}

	if err := v.users.RecordLoginSuccess(user.ID); err != nil {
		return nil, errors.Wrap(err, "[Verifier.Authenticate] RecordLoginSuccess")
	}
	v.recordAttempt(ctx, user, identifier, reqCtx, true, "")

	return &Identity{
		ID:              user.ID,
		DisplayName:     user.DisplayName,
		EmailVerifiedAt: user.EmailVerifiedAt,
		PhoneVerifiedAt: user.PhoneVerifiedAt,
	}, nil
}

// lookup resolves an identifier to a user, trying email then phone. A missing
// user is (nil, nil): absence is an authentication outcome, not a store error.
func (v *Verifier) lookup(identifier string) (*users.User, error) {
	user, err := v.users.GetByEmail(identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}
	user, err = v.users.GetByPhone(identifier)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func (v *Verifier) recordAttempt(ctx context.Context, user *users.User, identifier string, reqCtx RequestContext, success bool, reason string) {
	attempt := &audit.Attempt{
		Identifier: &identifier,
		IP:         reqCtx.IP,
		UserAgent:  reqCtx.UserAgent,
		Success:    success,
		Reason:     reason,
		CreatedAt:  v.nowTime(),
	}
	if user != nil {
		attempt.UserID = &user.ID
	}
	// Audit failures never abort the primary flow.
	if err := v.audit.Record(ctx, attempt); err != nil {
		log.Error().Err(err).Str("identifier", identifier).Msg("failed to record login attempt")
	}
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return users.NormalizeEmail(identifier)
	}
	return identifier
}
