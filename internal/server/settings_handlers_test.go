package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProfessorNova/focusflow/internal/auth"
)

func TestSettingsShowsRecoveryCodeOnlyWithTwoFactor(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "plain@example.com", true, false)
	u := app.createUser(t, "totp@example.com", true, true)

	c := app.client()
	c.login(t, "plain@example.com")
	body := decodeBody(t, c.do(t, http.MethodGet, "/api/settings", nil))
	assert.Nil(t, body["recoveryCode"])

	c = app.client()
	c.login(t, "totp@example.com")
	body = decodeBody(t, c.do(t, http.MethodGet, "/api/settings", nil))
	code, err := app.srv.TwoFactor.GetUserRecoveryCode(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, code, body["recoveryCode"])
}

func TestUpdatePasswordRotatesSessions(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	u := app.createUser(t, "ada@example.com", true, false)

	phone := app.client()
	phone.login(t, "ada@example.com")
	c := app.client()
	c.login(t, "ada@example.com")
	oldToken := c.cookie(auth.SessionCookieName)

	rec := c.do(t, http.MethodPost, "/api/settings/password", map[string]string{"password": "not it", "newPassword": newPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Incorrect password", decodeBody(t, rec)["message"])

	rec = c.do(t, http.MethodPost, "/api/settings/password", map[string]string{"password": testPassword, "newPassword": "short"})
	assert.Equal(t, "Weak password", decodeBody(t, rec)["message"])

	rec = c.do(t, http.MethodPost, "/api/settings/password", map[string]string{"password": testPassword, "newPassword": newPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	newToken := c.cookie(auth.SessionCookieName)
	assert.NotEqual(t, oldToken, newToken)
	assert.Nil(t, app.session(t, oldToken))
	assert.Nil(t, app.session(t, phone.cookie(auth.SessionCookieName)))

	sessions, err := app.store.ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].TwoFactorVerified)
}

func TestUpdatePasswordBucketIsPerSession(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "ada@example.com", true, false)
	c := app.client()
	c.login(t, "ada@example.com")

	wrong := map[string]string{"password": "not it", "newPassword": newPassword}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusBadRequest, c.do(t, http.MethodPost, "/api/settings/password", wrong).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, c.do(t, http.MethodPost, "/api/settings/password", wrong).Code)

	other := app.client()
	other.login(t, "ada@example.com")
	assert.Equal(t, http.StatusBadRequest, other.do(t, http.MethodPost, "/api/settings/password", wrong).Code)
}

func TestUpdateEmailSendsVerification(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	u := app.createUser(t, "ada@example.com", true, false)
	app.createUser(t, "taken@example.com", true, false)
	c := app.client()
	c.login(t, "ada@example.com")

	rec := c.do(t, http.MethodPost, "/api/settings/email", map[string]string{"email": "taken@example.com"})
	assert.Equal(t, "This email is already used", decodeBody(t, rec)["message"])

	rec = c.do(t, http.MethodPost, "/api/settings/email", map[string]string{"email": "ada@new.example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/verify-email", decodeBody(t, rec)["next"])

	req, err := app.store.GetEmailVerificationRequest(ctx, u.ID, c.cookie(auth.EmailVerificationCookieName))
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "ada@new.example.com", req.Email)

	rec = c.do(t, http.MethodPost, "/api/verify-email", map[string]string{"code": req.Code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := app.srv.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@new.example.com", user.Email)
	assert.True(t, user.EmailVerified)
}

func TestSettingsActivityAndSessions(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "ada@example.com", true, false)
	c := app.client()
	c.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ada@example.com", "password": "wrong password"})
	c.login(t, "ada@example.com")

	rec := c.do(t, http.MethodGet, "/api/settings/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events, _ := decodeBody(t, rec)["events"].([]interface{})
	require.Len(t, events, 2)
	first, _ := events[0].(map[string]interface{})
	last, _ := events[1].(map[string]interface{})
	assert.Equal(t, auth.AuditLoginFailed, first["eventType"])
	assert.Equal(t, auth.AuditLogin, last["eventType"])

	assert.Equal(t, http.StatusBadRequest, c.do(t, http.MethodGet, "/api/settings/activity?limit=zero", nil).Code)

	rec = c.do(t, http.MethodGet, "/api/settings/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions, _ := decodeBody(t, rec)["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	current, _ := sessions[0].(map[string]interface{})
	assert.Equal(t, true, current["current"])
}
