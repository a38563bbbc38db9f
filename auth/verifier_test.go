package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/mindwell-app/mindwell-server/auth"
	"github.com/mindwell-app/mindwell-server/auth/audit"
	fakerecorder "github.com/mindwell-app/mindwell-server/auth/audit/recorderfake"
	"github.com/mindwell-app/mindwell-server/internal/utils"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/users"
	fakeuserrepo "github.com/mindwell-app/mindwell-server/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "a@x.com"
	testUserPhone    = "+15550100"
	testUserPassword = "Sixchr!A1"
	testUserName     = "Test User"
	testIP           = "203.0.113.7"
	testUserAgent    = "go-test/1.0"
)

// testFixture holds all test dependencies
type testFixture struct {
	userRepo *fakeuserrepo.FakeUserRepo
	recorder *fakerecorder.FakeRecorder
	store    *ratelimit.MemoryStore
	verifier *auth.Verifier
	now      time.Time
}

func setupTestFixture(t *testing.T, options ...auth.VerifierOption) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		recorder: fakerecorder.NewFakeRecorder(),
		now:      time.Now(),
	}
	f.store = ratelimit.NewMemoryStore(ratelimit.WithNowFunc(func() time.Time { return f.now }))
	t.Cleanup(f.store.Close)
	f.userRepo.SetNowFunc(func() time.Time { return f.now })

	opts := append([]auth.VerifierOption{auth.WithNowTime(func() time.Time { return f.now })}, options...)
	verifier, err := auth.NewVerifier(f.userRepo, f.recorder, ratelimit.NewLimiter(f.store), opts...)
	require.NoError(t, err)
	f.verifier = verifier
	return f
}

func (f *testFixture) createTestUser(t *testing.T) *users.User {
	t.Helper()

	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	user := &users.User{
		Email:           testUserEmail,
		Phone:           testUserPhone,
		PasswordHash:    &hash,
		DisplayName:     testUserName,
		EmailVerifiedAt: utils.Ptr(f.now),
		CreatedAt:       f.now,
	}
	require.NoError(t, f.userRepo.Upsert(user))
	return user
}

func reqCtx() auth.RequestContext {
	return auth.RequestContext{IP: testIP, UserAgent: testUserAgent}
}

func TestAuthenticateSuccess(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createTestUser(t)

	identity, err := f.verifier.Authenticate(context.Background(), testUserEmail, testUserPassword, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)
	assert.Equal(t, testUserName, identity.DisplayName)
	assert.NotNil(t, identity.EmailVerifiedAt)

	last := f.recorder.Last()
	require.NotNil(t, last)
	assert.True(t, last.Success)
	assert.Empty(t, last.Reason)
	assert.Equal(t, testIP, last.IP)

	stored, err := f.userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestAuthenticateByPhone(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createTestUser(t)

	identity, err := f.verifier.Authenticate(context.Background(), testUserPhone, testUserPassword, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)
}

func TestAuthenticateUnknownIdentifierMatchesWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t)

	_, errUnknown := f.verifier.Authenticate(context.Background(), "nobody@x.com", testUserPassword, reqCtx())
	_, errWrongPw := f.verifier.Authenticate(context.Background(), testUserEmail, "WrongPass1", reqCtx())

	// Identical caller-visible error for both, so existence cannot leak.
	require.ErrorIs(t, errUnknown, auth.ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, auth.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())

	// The audit trail still distinguishes them.
	attempts := f.recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, audit.ReasonUserNotFound, attempts[0].Reason)
	assert.Equal(t, audit.ReasonInvalidPassword, attempts[1].Reason)
}

func TestAuthenticatePasswordlessAccountFailsLikeUnknown(t *testing.T) {
	f := setupTestFixture(t)
	user := &users.User{Email: "oauth@x.com", DisplayName: "OAuth Only"}
	require.NoError(t, f.userRepo.Upsert(user))

	_, err := f.verifier.Authenticate(context.Background(), "oauth@x.com", "Whatever1", reqCtx())
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, audit.ReasonUserNotFound, f.recorder.Last().Reason)
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	// Raise the rate ceiling so lockout, not rate limiting, is exercised.
	f := setupTestFixture(t, auth.WithLoginRateLimit(100, time.Minute))
	user := f.createTestUser(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.verifier.Authenticate(ctx, testUserEmail, "WrongPass1", reqCtx())
		require.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", i+1)
	}

	// Sixth attempt with the CORRECT password still fails as locked.
	_, err := f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.ErrorIs(t, err, auth.ErrAccountLocked)
	assert.Equal(t, audit.ReasonAccountLocked, f.recorder.Last().Reason)

	// After the lockout window the correct password succeeds and the counter
	// is reset.
	f.now = f.now.Add(15*time.Minute + time.Second)
	identity, err := f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)

	stored, err := f.userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestSuccessBelowThresholdResetsCounter(t *testing.T) {
	f := setupTestFixture(t, auth.WithLoginRateLimit(100, time.Minute))
	user := f.createTestUser(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.verifier.Authenticate(ctx, testUserEmail, "WrongPass1", reqCtx())
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	_, err := f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.NoError(t, err)

	stored, err := f.userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
}

func TestRateLimiterDeniesBeforeLookup(t *testing.T) {
	f := setupTestFixture(t, auth.WithLoginRateLimit(2, time.Minute))
	f.createTestUser(t)
	ctx := context.Background()

	_, err := f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.NoError(t, err)
	_, err = f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.NoError(t, err)

	_, err = f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	require.ErrorIs(t, err, auth.ErrRateLimited)
	assert.Equal(t, audit.ReasonRateLimited, f.recorder.Last().Reason)
}

func TestRateLimitKeyedPerIdentifier(t *testing.T) {
	f := setupTestFixture(t, auth.WithLoginRateLimit(1, time.Minute))
	f.createTestUser(t)
	ctx := context.Background()

	_, err := f.verifier.Authenticate(ctx, "other@x.com", "Whatever1", reqCtx())
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.verifier.Authenticate(ctx, "other@x.com", "Whatever1", reqCtx())
	require.ErrorIs(t, err, auth.ErrRateLimited)

	// A different identifier still has its own fresh window.
	_, err = f.verifier.Authenticate(ctx, testUserEmail, testUserPassword, reqCtx())
	assert.NoError(t, err)
}

func TestAuditFailureDoesNotAbortLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t)
	f.recorder.FailWith = assert.AnError

	_, err := f.verifier.Authenticate(context.Background(), testUserEmail, testUserPassword, reqCtx())
	assert.NoError(t, err, "audit logging failures must not abort authentication")
}

func TestEndToEndLockoutScenario(t *testing.T) {
	f := setupTestFixture(t, auth.WithLoginRateLimit(100, time.Hour))
	ctx := context.Background()

	// Register user A.
	hash, err := users.HashPassword("Sixchr!A1")
	require.NoError(t, err)
	user := &users.User{Email: "a@x.com", PasswordHash: &hash, DisplayName: "A"}
	require.NoError(t, f.userRepo.Upsert(user))

	// Login succeeds.
	_, err = f.verifier.Authenticate(ctx, "a@x.com", "Sixchr!A1", reqCtx())
	require.NoError(t, err)

	// Five wrong-password logins.
	for i := 0; i < 5; i++ {
		_, err = f.verifier.Authenticate(ctx, "a@x.com", "nope-nope", reqCtx())
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	// Sixth with the correct password fails as locked.
	_, err = f.verifier.Authenticate(ctx, "a@x.com", "Sixchr!A1", reqCtx())
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	// Simulate the clock past the lockout window.
	f.now = f.now.Add(16 * time.Minute)
	_, err = f.verifier.Authenticate(ctx, "a@x.com", "Sixchr!A1", reqCtx())
	require.NoError(t, err)

	stored, err := f.userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
}
