package server

import (
	"fmt"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
)

// Access describes what a request must carry before a handler runs.
type Access int

const (
	// AccessPublic needs nothing.
	AccessPublic Access = iota
	// AccessSession needs a valid session cookie.
	AccessSession
	// AccessVerifiedEmail needs a session, a verified email and, if the
	// user has a TOTP key, a 2FA verified session.
	AccessVerifiedEmail
	// AccessTwoFactor needs a session with 2FA verified against a
	// registered key, on top of a verified email.
	AccessTwoFactor
	// AccessSecondFactorSatisfied needs a session that is 2FA verified
	// whenever the user has a key. Email verification is not checked.
	AccessSecondFactorSatisfied
)

type AccessRule struct {
	Method string
	Path   string
	Access Access
}

var endpointAccess = []AccessRule{
	{Method: http.MethodPost, Path: "/api/signup", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/login", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/forgot-password", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/reset-password/verify-email", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/reset-password/2fa", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/reset-password/recovery-code", Access: AccessPublic},
	{Method: http.MethodPost, Path: "/api/reset-password", Access: AccessPublic},

	{Method: http.MethodPost, Path: "/api/logout", Access: AccessSession},
	{Method: http.MethodGet, Path: "/api/me", Access: AccessSession},
	{Method: http.MethodPost, Path: "/api/verify-email", Access: AccessSession},
	{Method: http.MethodPost, Path: "/api/verify-email/resend", Access: AccessSession},
	{Method: http.MethodPost, Path: "/api/2fa", Access: AccessSession},
	{Method: http.MethodPost, Path: "/api/2fa/reset", Access: AccessSession},

	{Method: http.MethodGet, Path: "/api/2fa/setup", Access: AccessVerifiedEmail},
	{Method: http.MethodPost, Path: "/api/2fa/setup", Access: AccessVerifiedEmail},

	{Method: http.MethodGet, Path: "/api/recovery-code", Access: AccessTwoFactor},

	{Method: http.MethodGet, Path: "/api/settings", Access: AccessSecondFactorSatisfied},
	{Method: http.MethodGet, Path: "/api/settings/activity", Access: AccessSecondFactorSatisfied},
	{Method: http.MethodGet, Path: "/api/settings/sessions", Access: AccessSecondFactorSatisfied},
	{Method: http.MethodPost, Path: "/api/settings/password", Access: AccessSecondFactorSatisfied},
	{Method: http.MethodPost, Path: "/api/settings/email", Access: AccessSecondFactorSatisfied},
}

func accessFor(method, path string) Access {
	for _, rule := range endpointAccess {
		if rule.Method == method && rule.Path == path {
			return rule.Access
		}
	}
	panic(fmt.Sprintf("missing access rule for %s %s", method, path))
}

// accessAllowed reports the status to answer with when v does not satisfy
// level, or 0 when it does.
func accessAllowed(level Access, v *auth.SessionValidation) (int, string) {
	if level == AccessPublic {
		return 0, ""
	}
	if v == nil {
		return http.StatusUnauthorized, "Not authenticated"
	}

	user, session := v.User, v.Session
	pending2FA := user.Registered2FA && !session.TwoFactorVerified

	switch level {
	case AccessVerifiedEmail:
		if !user.EmailVerified || pending2FA {
			return http.StatusForbidden, "Forbidden"
		}
	case AccessTwoFactor:
		if !user.EmailVerified || !user.Registered2FA || !session.TwoFactorVerified {
			return http.StatusForbidden, "Forbidden"
		}
	case AccessSecondFactorSatisfied:
		if pending2FA {
			return http.StatusForbidden, "Forbidden"
		}
	}
	return 0, ""
}
