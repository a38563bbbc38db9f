package fakeuserrepo

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindwell-app/mindwell-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory UserRepo for tests and single-instance runs.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	phoneIds map[string]string // phone to user id
	lock     sync.RWMutex
	nowFunc  func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
		phoneIds: make(map[string]string),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock, primarily for lockout tests.
func (ur *FakeUserRepo) SetNowFunc(now func() time.Time) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.nowFunc = now
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.Email == "" && user.Phone == "" {
		return errors.New("at least one identifier is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Email != "" {
		if existing, ok := ur.emailIds[user.Email]; ok && existing != user.ID {
			return users.ErrDuplicateIdentifier
		}
	}
	if user.Phone != "" {
		if existing, ok := ur.phoneIds[user.Phone]; ok && existing != user.ID {
			return users.ErrDuplicateIdentifier
		}
	}
	ur.users[user.ID] = user
	if user.Email != "" {
		ur.emailIds[user.Email] = user.ID
	}
	if user.Phone != "" {
		ur.phoneIds[user.Phone] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.phoneIds, user.Phone)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, users.ErrNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByPhone(phone string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.phoneIds[phone]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) RecordLoginFailure(id string, lockThreshold int, lockFor time.Duration) (int, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return 0, users.ErrNotFound
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= lockThreshold {
		lockedUntil := ur.nowFunc().Add(lockFor)
		user.LockedUntil = &lockedUntil
	}
	return user.FailedLoginAttempts, nil
}

func (ur *FakeUserRepo) RecordLoginSuccess(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	now := ur.nowFunc()
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return nil
}

func (ur *FakeUserRepo) SetPassword(id string, passwordHash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrNotFound
	}
	user.PasswordHash = &passwordHash
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}
