package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName           = "session"
	PasswordResetCookieName     = "password_reset_session"
	EmailVerificationCookieName = "email_verification"
)

// Cookies writes the auth cookies. Secure should only be off for local
// development over plain HTTP.
type Cookies struct {
	Secure bool
}

func (c Cookies) set(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) SetSessionToken(w http.ResponseWriter, token string, expires time.Time) {
	c.set(w, SessionCookieName, token, expires)
}

func (c Cookies) DeleteSessionToken(w http.ResponseWriter) {
	c.clear(w, SessionCookieName)
}

func (c Cookies) SetPasswordResetSessionToken(w http.ResponseWriter, token string, expires time.Time) {
	c.set(w, PasswordResetCookieName, token, expires)
}

func (c Cookies) DeletePasswordResetSessionToken(w http.ResponseWriter) {
	c.clear(w, PasswordResetCookieName)
}

func (c Cookies) SetEmailVerificationRequest(w http.ResponseWriter, req *EmailVerificationRequest) {
	c.set(w, EmailVerificationCookieName, req.ID, req.ExpiresAt)
}

func (c Cookies) DeleteEmailVerificationRequest(w http.ResponseWriter) {
	c.clear(w, EmailVerificationCookieName)
}

// CookieValue returns the named cookie's value or "".
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
