package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the backing store for rate-limit counters. The in-memory
// implementation serves a single instance; a horizontally scaled deployment
// swaps in the Redis implementation so all instances share one counter space.
type CounterStore interface {
	// IncrementOrInit atomically bumps the counter for key inside its current
	// window, starting a fresh window at 1 when no live entry exists. It
	// returns the count after the update.
	IncrementOrInit(ctx context.Context, key string, window time.Duration) (int, error)
}
