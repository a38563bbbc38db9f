package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo backs tests and local development.
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries map[string][]*Entry // userID -> entries, newest last
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{entries: make(map[string][]*Entry)}
}

func (r *InMemoryRepo) Create(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	stored := *entry
	r.entries[entry.UserID] = append(r.entries[entry.UserID], &stored)
	return nil
}

func (r *InMemoryRepo) ListByUser(_ context.Context, userID string, kind Kind, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	entries := r.entries[userID]
	for i := len(entries) - 1; i >= 0; i-- { // newest first
		if entries[i].Kind != kind {
			continue
		}
		copied := *entries[i]
		out = append(out, &copied)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, userID string, kind Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.entries[userID]
	for i, entry := range entries {
		if entry.ID == id && entry.Kind == kind {
			r.entries[userID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
