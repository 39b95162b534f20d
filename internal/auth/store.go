package auth

import (
	"context"
	"time"
)

// Lookups return nil, nil when the record does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, user UserRecord) error
	GetUser(ctx context.Context, id string) (*UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	UpdateUserPasswordHash(ctx context.Context, id, hash string) error
	UpdateUserEmail(ctx context.Context, id, email string, verified bool) error
	// SetUserEmailVerifiedIfMatches reports whether a row was updated.
	SetUserEmailVerifiedIfMatches(ctx context.Context, id, email string) (bool, error)
	// UpdateUserTOTPKey stores an encrypted key; nil removes it.
	UpdateUserTOTPKey(ctx context.Context, id string, key []byte) error
	UpdateUserRecoveryCode(ctx context.Context, id string, code []byte) error
	// ResetUserTwoFactor stores a new encrypted recovery code and removes the
	// TOTP key in one write.
	ResetUserTwoFactor(ctx context.Context, id string, recoveryCode []byte) error
	SetUserLastLogin(ctx context.Context, id string, at time.Time) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	SetSessionTwoFactorVerified(ctx context.Context, id string, verified bool) error
	SetUserSessionsTwoFactorVerified(ctx context.Context, userID string, verified bool) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	ListUserSessions(ctx context.Context, userID string) ([]Session, error)
}

type PasswordResetStore interface {
	CreatePasswordResetSession(ctx context.Context, session PasswordResetSession) error
	GetPasswordResetSession(ctx context.Context, id string) (*PasswordResetSession, error)
	SetPasswordResetSessionEmailVerified(ctx context.Context, id string) error
	SetPasswordResetSessionTwoFactorVerified(ctx context.Context, id string) error
	DeletePasswordResetSession(ctx context.Context, id string) error
	DeleteUserPasswordResetSessions(ctx context.Context, userID string) error
}

type EmailVerificationStore interface {
	CreateEmailVerificationRequest(ctx context.Context, req EmailVerificationRequest) error
	GetEmailVerificationRequest(ctx context.Context, userID, id string) (*EmailVerificationRequest, error)
	DeleteUserEmailVerificationRequests(ctx context.Context, userID string) error
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}
