package resettoken

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var errTokenNotFound = errors.New("reset token not found")

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo keeps at most one live token per identifier, matching the
// Replace semantics.
type InMemoryRepo struct {
	mu     sync.RWMutex
	tokens map[string]Token // identifier -> token
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{tokens: make(map[string]Token)}
}

func (r *InMemoryRepo) Replace(token *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Identifier] = *token
	return nil
}

func (r *InMemoryRepo) Get(identifier, value string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[identifier]
	if !ok || token.Value != value {
		return nil, errTokenNotFound
	}
	return &token, nil
}

func (r *InMemoryRepo) Delete(identifier, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[identifier]
	if !ok || token.Value != value {
		return nil // already gone
	}
	delete(r.tokens, identifier)
	return nil
}

// Sweep removes expired tokens. Expiry is still enforced at validation time;
// this only bounds memory.
func (r *InMemoryRepo) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for identifier, token := range r.tokens {
		if now.After(token.ExpiresAt) {
			delete(r.tokens, identifier)
		}
	}
}
