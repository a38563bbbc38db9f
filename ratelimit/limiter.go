// Package ratelimit implements fixed-window rate limiting over a swappable
// counter store. Two independent keyspaces are used in practice: a coarse
// per-source-IP space applied to every request, and per-identifier purpose
// spaces (login attempts per email, mood submissions per user) so one abusive
// actor cannot exhaust another user's quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter answers allow/deny for a key against a ceiling inside a window.
type Limiter struct {
	store CounterStore
}

func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Allow increments the counter for key and reports whether the request is
// inside the ceiling. A missing or expired entry is a fresh window, never a
// failure. A store error is logged and the request allowed: under-counting
// only loosens the limit, while the hard stops (lockout, token expiry) remain
// store-backed.
func (l *Limiter) Allow(ctx context.Context, key string, ceiling int, window time.Duration) bool {
	count, err := l.store.IncrementOrInit(ctx, key, window)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, allowing request")
		return true
	}
	return count <= ceiling
}

// LoginKey builds the per-identifier login keyspace entry.
func LoginKey(identifier string) string {
	return fmt.Sprintf("login_%s", identifier)
}

// IPKey builds the coarse per-source-IP keyspace entry.
func IPKey(ip string) string {
	return fmt.Sprintf("rate_limit_%s", ip)
}

// PurposeKey builds an arbitrary purpose+actor keyspace entry, e.g.
// mood_entry_<userID>.
func PurposeKey(purpose, actor string) string {
	return fmt.Sprintf("%s_%s", purpose, actor)
}
