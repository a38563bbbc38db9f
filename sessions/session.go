// Package sessions issues and validates the signed, stateless session token
// carried by every authenticated request. Claims are trusted on signature
// alone; no data-store round trip happens in the hot path.
package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mindwell-app/mindwell-server/auth"
	"github.com/pkg/errors"
)

const (
	defaultLifetime         = 30 * 24 * time.Hour
	defaultRefreshThreshold = 7 * 24 * time.Hour
)

var ErrInvalidSession = errors.New("invalid or expired session")

// Claims is the signed payload inside a session token. Verification flags are
// snapshots from issuance time; they may lag the credential record until the
// token is re-issued (accepted consistency trade-off).
type Claims struct {
	jwt.RegisteredClaims
	DisplayName     string     `json:"name,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager signs and validates session tokens with a server-side HMAC secret.
type Manager struct {
	secret           []byte
	lifetime         time.Duration
	refreshThreshold time.Duration
	nowTime          func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithLifetime overrides the token lifetime and the sliding-refresh threshold.
func WithLifetime(lifetime, refreshThreshold time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lifetime = lifetime
		m.refreshThreshold = refreshThreshold
	}
}

func NewManager(secret []byte, options ...ManagerOption) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewManager] session secret is required")
	}

	m := &Manager{
		secret:           secret,
		lifetime:         defaultLifetime,
		refreshThreshold: defaultRefreshThreshold,
		nowTime:          time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Issue signs a new session token for the identity.
func (m *Manager) Issue(identity *auth.Identity) (string, error) {
	now := m.nowTime()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
			ID:        uuid.New().String(),
		},
		DisplayName:     identity.DisplayName,
		EmailVerifiedAt: identity.EmailVerifiedAt,
		PhoneVerifiedAt: identity.PhoneVerifiedAt,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.Issue] SignedString")
	}
	return signed, nil
}

// Validate checks signature and expiry and returns the claims. Integrity
// failure and expiry are indistinguishable to the caller.
func (m *Manager) Validate(rawToken string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.nowTime))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Refresh implements sliding expiration: when the validated token's remaining
// lifetime has dropped below the refresh threshold it returns a re-issued
// token, otherwise an empty string. This bounds how long a stolen token stays
// useful without ever being refreshed, while never forcing a re-login on an
// active user.
func (m *Manager) Refresh(claims *Claims) (string, error) {
	if claims.ExpiresAt == nil {
		return "", ErrInvalidSession
	}
	remaining := claims.ExpiresAt.Sub(m.nowTime())
	if remaining > m.refreshThreshold {
		return "", nil
	}
	return m.Issue(&auth.Identity{
		ID:              claims.Subject,
		DisplayName:     claims.DisplayName,
		EmailVerifiedAt: claims.EmailVerifiedAt,
		PhoneVerifiedAt: claims.PhoneVerifiedAt,
	})
}
