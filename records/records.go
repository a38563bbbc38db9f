// Package records is the thin boundary to the application data store. The
// authentication core treats it as generic CRUD keyed by user id; feature
// handlers store mood entries, journal entries and chat messages through it.
package records

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Kind partitions entries by feature.
type Kind string

const (
	KindMood    Kind = "mood"
	KindJournal Kind = "journal"
	KindChat    Kind = "chat"
)

var ErrNotFound = errors.New("record not found")

// Entry is one stored record. Payload is feature-defined JSON the core never
// interprets, except for the crisis screen on chat messages.
type Entry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repo is the abstract data store, keyed by user id.
type Repo interface {
	Create(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID string, kind Kind, limit int) ([]*Entry, error)
	Delete(ctx context.Context, userID string, kind Kind, id string) error
}
