package fakerecorder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindwell-app/mindwell-server/auth/audit"
)

var _ audit.Recorder = (*FakeRecorder)(nil)

// FakeRecorder captures attempts in memory for assertions.
type FakeRecorder struct {
	mu       sync.Mutex
	attempts []audit.Attempt

	// FailWith, when set, makes Record return this error so callers'
	// log-and-continue behavior can be exercised.
	FailWith error
}

func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

func (r *FakeRecorder) Record(_ context.Context, attempt *audit.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWith != nil {
		return r.FailWith
	}
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	r.attempts = append(r.attempts, *attempt)
	return nil
}

// Attempts returns a copy of everything recorded so far.
func (r *FakeRecorder) Attempts() []audit.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// Last returns the most recent attempt, or nil.
func (r *FakeRecorder) Last() *audit.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.attempts) == 0 {
		return nil
	}
	last := r.attempts[len(r.attempts)-1]
	return &last
}
