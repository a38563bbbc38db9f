// Package resettoken issues and consumes single-use password-reset tokens.
package resettoken

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/mindwell-app/mindwell-server/users"
	"github.com/pkg/errors"
)

// tokenByteLength is the entropy of a reset token: 32 bytes = 256 bits.
const tokenByteLength = 32

const defaultTTL = time.Hour

var (
	// ErrInvalidOrExpired covers an unknown token, a replayed token and a
	// token past its expiry; the caller cannot tell which.
	ErrInvalidOrExpired = errors.New("invalid or expired reset token")

	ErrAccountNotFound = errors.New("no account matches that identifier")
)

// Token is one outstanding reset token, keyed by (identifier, value).
type Token struct {
	Identifier string
	Value      string
	ExpiresAt  time.Time
}

// Repo stores reset tokens. Replace invalidates every prior token for the
// identifier: a fresh reset request supersedes anything still outstanding.
type Repo interface {
	Replace(token *Token) error
	Get(identifier, value string) (*Token, error)
	Delete(identifier, value string) error
}

// Issuer creates and redeems reset tokens. Expiry is enforced at validation
// time regardless of any storage-layer cleanup.
type Issuer struct {
	users   users.UserRepo
	tokens  Repo
	ttl     time.Duration
	nowTime func() time.Time
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

func NewIssuer(userRepo users.UserRepo, tokenRepo Repo, options ...IssuerOption) (*Issuer, error) {
	if userRepo == nil {
		return nil, errors.New("[NewIssuer] user repo is required")
	}
	if tokenRepo == nil {
		return nil, errors.New("[NewIssuer] token repo is required")
	}

	issuer := &Issuer{
		users:   userRepo,
		tokens:  tokenRepo,
		ttl:     defaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(issuer)
	}
	return issuer, nil
}

// Issue creates a fresh token for the identifier, superseding any prior
// outstanding tokens. When no account matches it does nothing and returns an
// empty token with no error, so the caller can report uniform success without
// leaking account existence.
func (i *Issuer) Issue(identifier string) (string, error) {
	identifier = users.NormalizeEmail(identifier)

	if _, err := i.users.GetByEmail(identifier); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "[Issuer.Issue] GetByEmail")
	}

	tokenBytes := make([]byte, tokenByteLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] rand.Read")
	}
	value := base64.RawURLEncoding.EncodeToString(tokenBytes)

	if err := i.tokens.Replace(&Token{
		Identifier: identifier,
		Value:      value,
		ExpiresAt:  i.nowTime().Add(i.ttl),
	}); err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] Replace")
	}
	return value, nil
}

// Consume redeems a token and sets the account's new password. The token is
// deleted on success so it can never be replayed, and the account's
// failed-attempt counter and lockout are cleared.
func (i *Issuer) Consume(identifier, value, newPassword string) error {
	identifier = users.NormalizeEmail(identifier)

	user, err := i.users.GetByEmail(identifier)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrAccountNotFound
		}
		return errors.Wrap(err, "[Issuer.Consume] GetByEmail")
	}

	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	token, err := i.tokens.Get(identifier, value)
	if err != nil {
		return ErrInvalidOrExpired
	}
	if i.nowTime().After(token.ExpiresAt) {
		return ErrInvalidOrExpired
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Issuer.Consume] HashPassword")
	}
	if err := i.users.SetPassword(user.ID, hash); err != nil {
		return errors.Wrap(err, "[Issuer.Consume] SetPassword")
	}

	if err := i.tokens.Delete(identifier, value); err != nil {
		return errors.Wrap(err, "[Issuer.Consume] Delete")
	}
	return nil
}
