package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	To, Subject, Text string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, text, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Text: text})
	return nil
}

type testEnv struct {
	store    *MemoryStore
	clock    *testClock
	cipher   *Cipher
	mailer   *recordingMailer
	users    *UserService
	sessions *SessionManager
	resets   *PasswordResetManager
	verify   *EmailVerificationManager
	twoFA    *TwoFactor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	env := &testEnv{
		store:  NewMemoryStore(),
		clock:  &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		cipher: cipher,
		mailer: &recordingMailer{},
	}
	env.users = NewUserService(env.store, &BcryptHasher{Cost: bcrypt.MinCost}, cipher)
	env.users.now = env.clock.Now
	env.sessions = NewSessionManager(env.store, env.store)
	env.sessions.now = env.clock.Now
	env.resets = NewPasswordResetManager(env.store, env.users, env.sessions, env.mailer)
	env.resets.now = env.clock.Now
	env.verify = NewEmailVerificationManager(env.store, env.mailer)
	env.verify.now = env.clock.Now
	env.twoFA = NewTwoFactor(env.store, env.store, cipher, "FocusFlow")
	env.twoFA.now = env.clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) *User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), email, "ada_l", "correct horse battery")
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, userID string, verified bool) (string, *Session) {
	t.Helper()
	token, err := GenerateSessionToken()
	require.NoError(t, err)
	s, err := e.sessions.CreateSession(context.Background(), token, userID, SessionFlags{TwoFactorVerified: verified})
	require.NoError(t, err)
	return token, s
}
