package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counterEntry struct {
	count   int
	resetAt time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

// MemoryStore keeps counters in a process-local map. Counters reset on
// restart; that only loosens the effective limit, never bypasses the
// store-backed hard stops (lockout, token expiry).
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]counterEntry
	nowFunc func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

type MemoryStoreOption func(*MemoryStore)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:   make(map[string]counterEntry),
		nowFunc:   time.Now,
		sweepStop: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MemoryStore) IncrementOrInit(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		s.entries[key] = counterEntry{count: 1, resetAt: now.Add(window)}
		return 1, nil
	}

	entry.count++
	s.entries[key] = entry
	return entry.count, nil
}

// Sweep removes expired entries. Exposed so tests can drive cleanup with a
// logical clock instead of waiting on the background ticker.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for key, entry := range s.entries {
		if now.After(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}

// StartSweeper launches the periodic cleanup task. Stop it via Close.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.sweepStop:
				return
			}
		}
	}()
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() {
	s.sweepOnce.Do(func() {
		close(s.sweepStop)
	})
}

// Len reports the number of live entries (for tests).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
