package resettoken_test

import (
	"testing"
	"time"

	"github.com/mindwell-app/mindwell-server/resettoken"
	"github.com/mindwell-app/mindwell-server/users"
	fakeuserrepo "github.com/mindwell-app/mindwell-server/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail       = "a@x.com"
	testNewPassword = "NewSecret1"
)

type fixture struct {
	userRepo  *fakeuserrepo.FakeUserRepo
	tokenRepo *resettoken.InMemoryRepo
	issuer    *resettoken.Issuer
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		userRepo:  fakeuserrepo.NewFakeUserRepo(),
		tokenRepo: resettoken.NewInMemoryRepo(),
		now:       time.Now(),
	}
	issuer, err := resettoken.NewIssuer(f.userRepo, f.tokenRepo,
		resettoken.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.issuer = issuer

	hash, err := users.HashPassword("OldSecret1")
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(&users.User{
		Email:        testEmail,
		PasswordHash: &hash,
		DisplayName:  "A",
	}))
	return f
}

func TestIssueReturnsHighEntropyToken(t *testing.T) {
	f := setup(t)

	token, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)
	// 32 bytes base64url without padding is 43 characters.
	assert.Len(t, token, 43)

	token2, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestIssueUnknownIdentifierReportsUniformSuccess(t *testing.T) {
	f := setup(t)

	token, err := f.issuer.Issue("nobody@x.com")
	assert.NoError(t, err, "issuance must look identical for unknown accounts")
	assert.Empty(t, token)
}

func TestIssueSupersedesPriorToken(t *testing.T) {
	f := setup(t)

	first, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)
	_, err = f.issuer.Issue(testEmail)
	require.NoError(t, err)

	err = f.issuer.Consume(testEmail, first, testNewPassword)
	assert.ErrorIs(t, err, resettoken.ErrInvalidOrExpired, "a fresh request invalidates the prior token")
}

func TestConsumeSetsPasswordAndClearsLockout(t *testing.T) {
	f := setup(t)

	user, err := f.userRepo.GetByEmail(testEmail)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.userRepo.RecordLoginFailure(user.ID, 5, 15*time.Minute)
		require.NoError(t, err)
	}

	token, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)
	require.NoError(t, f.issuer.Consume(testEmail, token, testNewPassword))

	stored, err := f.userRepo.GetByEmail(testEmail)
	require.NoError(t, err)
	assert.True(t, users.CheckPasswordHash(testNewPassword, *stored.PasswordHash))
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestConsumeIsSingleUse(t *testing.T) {
	f := setup(t)

	token, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)

	require.NoError(t, f.issuer.Consume(testEmail, token, testNewPassword))
	err = f.issuer.Consume(testEmail, token, "AnotherPass1")
	assert.ErrorIs(t, err, resettoken.ErrInvalidOrExpired, "a consumed token cannot be replayed")
}

func TestConsumeExpiredTokenFails(t *testing.T) {
	f := setup(t)

	token, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour + time.Minute)
	err = f.issuer.Consume(testEmail, token, testNewPassword)
	assert.ErrorIs(t, err, resettoken.ErrInvalidOrExpired)
}

func TestConsumeUnknownAccount(t *testing.T) {
	f := setup(t)

	err := f.issuer.Consume("nobody@x.com", "whatever", testNewPassword)
	assert.ErrorIs(t, err, resettoken.ErrAccountNotFound)
}

func TestConsumeEnforcesPasswordPolicy(t *testing.T) {
	f := setup(t)

	token, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)

	err = f.issuer.Consume(testEmail, token, "short")
	require.Error(t, err)
	assert.NotErrorIs(t, err, resettoken.ErrInvalidOrExpired)

	// Token survives a rejected password and can still be used.
	assert.NoError(t, f.issuer.Consume(testEmail, token, testNewPassword))
}

func TestWrongTokenValueFails(t *testing.T) {
	f := setup(t)

	_, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)

	err = f.issuer.Consume(testEmail, "not-the-token", testNewPassword)
	assert.ErrorIs(t, err, resettoken.ErrInvalidOrExpired)
}

func TestSweepRemovesExpired(t *testing.T) {
	f := setup(t)

	_, err := f.issuer.Issue(testEmail)
	require.NoError(t, err)
	f.tokenRepo.Sweep(f.now.Add(2 * time.Hour))

	// Swept or not, the outcome is identical: invalid or expired.
	err = f.issuer.Consume(testEmail, "anything", testNewPassword)
	assert.ErrorIs(t, err, resettoken.ErrInvalidOrExpired)
}
