package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPKeyURIAndQRCode(t *testing.T) {
	env := newTestEnv(t)
	key, err := GenerateTOTPKey()
	require.NoError(t, err)
	require.Len(t, key, 20)

	uri, qr, err := env.twoFA.KeyURI("ada_l", key)
	require.NoError(t, err)

	parsed, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", parsed.Scheme)
	assert.Equal(t, "totp", parsed.Host)
	q := parsed.Query()
	assert.Equal(t, base32NoPad.EncodeToString(key), q.Get("secret"))
	assert.Equal(t, "FocusFlow", q.Get("issuer"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
	assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
}

func TestVerifyTOTP(t *testing.T) {
	env := newTestEnv(t)
	key, _ := GenerateTOTPKey()

	code, err := GenerateTOTPCode(key, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, env.twoFA.VerifyTOTP(key, code))

	env.clock.Advance(30 * time.Second)
	assert.True(t, env.twoFA.VerifyTOTP(key, code), "one step of skew")

	env.clock.Advance(5 * time.Minute)
	assert.False(t, env.twoFA.VerifyTOTP(key, code))
	assert.False(t, env.twoFA.VerifyTOTP(nil, code))
	assert.False(t, env.twoFA.VerifyTOTP(key, ""))
}

func TestRegisterTOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ada@example.com")
	token, s := env.login(t, u.ID, false)
	key, _ := GenerateTOTPKey()

	ok, err := env.twoFA.RegisterTOTP(ctx, s.ID, u.ID, key, "abcdef")
	require.NoError(t, err)
	assert.False(t, ok)
	v, _ := env.sessions.ValidateSessionToken(ctx, token)
	assert.False(t, v.User.Registered2FA, "wrong code commits nothing")

	code, err := GenerateTOTPCode(key, env.clock.Now())
	require.NoError(t, err)
	ok, err = env.twoFA.RegisterTOTP(ctx, s.ID, u.ID, key, code)
	require.NoError(t, err)
	require.True(t, ok)

	v, err = env.sessions.ValidateSessionToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, v.User.Registered2FA)
	assert.True(t, v.Session.TwoFactorVerified)

	rec, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, key, rec.TOTPKey, "stored encrypted")

	stored, err := env.twoFA.GetUserTOTPKey(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, key, stored)

	ok, err = env.twoFA.VerifyUserTOTP(ctx, u.ID, code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUserTOTPWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ada@example.com")

	ok, err := env.twoFA.VerifyUserTOTP(context.Background(), u.ID, "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.twoFA.VerifyUserTOTP(context.Background(), "missing", "123456")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestResetUser2FAWithRecoveryCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ada@example.com")
	key, _ := GenerateTOTPKey()
	require.NoError(t, env.twoFA.UpdateUserTOTPKey(ctx, u.ID, key))
	_, s1 := env.login(t, u.ID, true)
	_, s2 := env.login(t, u.ID, true)

	before, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)

	ok, err := env.twoFA.ResetUser2FAWithRecoveryCode(ctx, u.ID, "WRONGWRONGWRONG2")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.RecoveryCode, after.RecoveryCode)
	assert.Equal(t, before.TOTPKey, after.TOTPKey)

	code, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	ok, err = env.twoFA.ResetUser2FAWithRecoveryCode(ctx, u.ID, code)
	require.NoError(t, err)
	require.True(t, ok)

	after, err = env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, after.TOTPKey)

	rotated, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, code, rotated)

	for _, id := range []string{s1.ID, s2.ID} {
		s, err := env.store.GetSession(ctx, id)
		require.NoError(t, err)
		assert.False(t, s.TwoFactorVerified)
	}

	ok, err = env.twoFA.ResetUser2FAWithRecoveryCode(ctx, u.ID, code)
	require.NoError(t, err)
	assert.False(t, ok, "old code is single use")
}

func TestResetUserRecoveryCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ada@example.com")

	before, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	fresh, err := env.twoFA.ResetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before, fresh)

	got, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	_, err = env.twoFA.GetUserRecoveryCode(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

type failingTwoFactorStore struct {
	*MemoryStore
}

func (failingTwoFactorStore) ResetUserTwoFactor(context.Context, string, []byte) error {
	return errors.New("db down")
}

func TestResetUser2FAWithRecoveryCodeStoreFailureKeepsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "ada@example.com")
	key, _ := GenerateTOTPKey()
	require.NoError(t, env.twoFA.UpdateUserTOTPKey(ctx, u.ID, key))
	code, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)

	twoFA := NewTwoFactor(failingTwoFactorStore{env.store}, env.store, env.cipher, "FocusFlow")
	ok, err := twoFA.ResetUser2FAWithRecoveryCode(ctx, u.ID, code)
	require.Error(t, err)
	assert.False(t, ok)

	rec, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec.TOTPKey)
	still, err := env.twoFA.GetUserRecoveryCode(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, code, still, "the known recovery code keeps working")
}

func TestVerifyTOTPRejectsTwoStepsOfDrift(t *testing.T) {
	env := newTestEnv(t)
	key, _ := GenerateTOTPKey()
	code, err := GenerateTOTPCode(key, env.clock.Now())
	require.NoError(t, err)

	env.clock.Advance(-30 * time.Second)
	assert.True(t, env.twoFA.VerifyTOTP(key, code))
	env.clock.Advance(-30 * time.Second)
	assert.False(t, env.twoFA.VerifyTOTP(key, code))
}
