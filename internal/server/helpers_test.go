package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/config"
	"github.com/ProfessorNova/focusflow/internal/ratelimit"
)

const testPassword = "correct horse battery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testApp struct {
	store   *auth.MemoryStore
	clock   *fakeClock
	mailer  *recordingMailer
	srv     *Server
	handler http.Handler
}

// newTestApp serves the API over in-memory stores. Rate limiters run on a
// frozen clock; managers use wall time.
func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Config{
		CookieSecure:    false,
		TOTPIssuer:      "FocusFlow",
		Login2FADefault: true,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	cipher, err := auth.NewCipher([]byte("0123456789abcdef"))
	require.NoError(t, err)

	pwned := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1")
	}))
	t.Cleanup(pwned.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := &testApp{
		store:  auth.NewMemoryStore(),
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		mailer: &recordingMailer{},
	}
	users := auth.NewUserService(app.store, &auth.BcryptHasher{Cost: bcrypt.MinCost}, cipher)
	sessions := auth.NewSessionManager(app.store, app.store)
	svc := Services{
		Users:         users,
		Sessions:      sessions,
		Resets:        auth.NewPasswordResetManager(app.store, users, sessions, app.mailer),
		Verifications: auth.NewEmailVerificationManager(app.store, app.mailer),
		TwoFactor:     auth.NewTwoFactor(app.store, app.store, cipher, cfg.TOTPIssuer),
		Strength:      auth.NewPasswordStrengthChecker(pwned.URL, false),
		Audit:         &auth.AuditLogger{Redis: rdb, MaxLen: 50},
	}
	app.srv = NewServer(cfg, svc, ratelimit.WithClock(app.clock.Now))
	app.handler = app.srv.Router()
	return app
}

type testUser struct {
	ID      string
	Email   string
	TOTPKey []byte
}

func (a *testApp) createUser(t *testing.T, email string, verified, withTOTP bool) testUser {
	t.Helper()
	ctx := context.Background()

	u, err := a.srv.Users.CreateUser(ctx, email, "ada_l", testPassword)
	require.NoError(t, err)
	tu := testUser{ID: u.ID, Email: email}

	if verified {
		require.NoError(t, a.srv.Users.UpdateUserEmailAndSetEmailAsVerified(ctx, u.ID, email))
	}
	if withTOTP {
		key, err := auth.GenerateTOTPKey()
		require.NoError(t, err)
		require.NoError(t, a.srv.TwoFactor.UpdateUserTOTPKey(ctx, u.ID, key))
		tu.TOTPKey = key
	}
	return tu
}

func mustDecodeKey(t *testing.T, encoded string) []byte {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	return key
}

func totpCode(t *testing.T, key []byte) string {
	t.Helper()
	code, err := auth.GenerateTOTPCode(key, time.Now())
	require.NoError(t, err)
	return code
}

// client is a cookie jar in front of the router.
type client struct {
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) client() *client {
	return &client{app: a, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	rec := httptest.NewRecorder()
	c.app.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) cookie(name string) string {
	if ck, ok := c.cookies[name]; ok {
		return ck.Value
	}
	return ""
}

func (c *client) login(t *testing.T, email string) *httptest.ResponseRecorder {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/api/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testApp) session(t *testing.T, token string) *auth.Session {
	t.Helper()
	s, err := a.store.GetSession(context.Background(), auth.HashToken(token))
	require.NoError(t, err)
	return s
}
