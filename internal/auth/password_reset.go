package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ProfessorNova/focusflow/internal/i18n"
)

const PasswordResetLifetime = 10 * time.Minute

type PasswordResetSession struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Email             string    `json:"email"`
	Code              string    `json:"-"`
	ExpiresAt         time.Time `json:"expiresAt"`
	EmailVerified     bool      `json:"emailVerified"`
	TwoFactorVerified bool      `json:"twoFactorVerified"`
}

type PasswordResetValidation struct {
	Session *PasswordResetSession
	User    *User
}

// PasswordResetManager drives a reset session from creation through email
// and 2FA verification to the final password update. Ordering of the
// verification steps is enforced by the HTTP layer.
type PasswordResetManager struct {
	Resets   PasswordResetStore
	Users    *UserService
	Sessions *SessionManager
	Mailer   Mailer
	now      func() time.Time
}

func NewPasswordResetManager(resets PasswordResetStore, users *UserService, sessions *SessionManager, mailer Mailer) *PasswordResetManager {
	return &PasswordResetManager{Resets: resets, Users: users, Sessions: sessions, Mailer: mailer, now: time.Now}
}

func (m *PasswordResetManager) CreatePasswordResetSession(ctx context.Context, token, userID, email string) (*PasswordResetSession, error) {
	code, err := GenerateRandomOTP()
	if err != nil {
		return nil, err
	}
	session := PasswordResetSession{
		ID:        HashToken(token),
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: m.now().Add(PasswordResetLifetime),
	}
	if err := m.Resets.CreatePasswordResetSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create password reset session: %w", err)
	}
	return &session, nil
}

func (m *PasswordResetManager) ValidatePasswordResetSessionToken(ctx context.Context, token string) (*PasswordResetValidation, error) {
	if token == "" {
		return nil, nil
	}
	id := HashToken(token)

	session, err := m.Resets.GetPasswordResetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get password reset session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if !m.now().Before(session.ExpiresAt) {
		if err := m.Resets.DeletePasswordResetSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete expired password reset session: %w", err)
		}
		return nil, nil
	}

	user, err := m.Users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if err := m.Resets.DeletePasswordResetSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete orphaned password reset session: %w", err)
		}
		return nil, nil
	}
	return &PasswordResetValidation{Session: session, User: user}, nil
}

func (m *PasswordResetManager) SetPasswordResetSessionAsEmailVerified(ctx context.Context, id string) error {
	return m.Resets.SetPasswordResetSessionEmailVerified(ctx, id)
}

func (m *PasswordResetManager) SetPasswordResetSessionAs2FAVerified(ctx context.Context, id string) error {
	return m.Resets.SetPasswordResetSessionTwoFactorVerified(ctx, id)
}

func (m *PasswordResetManager) InvalidateUserPasswordResetSessions(ctx context.Context, userID string) error {
	return m.Resets.DeleteUserPasswordResetSessions(ctx, userID)
}

// CompletePasswordReset consumes the reset session: every reset session and
// login session of the user is dropped, the password is replaced and one
// new login session is issued. The new session keeps the reset session's
// 2FA flag.
func (m *PasswordResetManager) CompletePasswordReset(ctx context.Context, reset *PasswordResetSession, password string) (string, *Session, error) {
	if err := m.InvalidateUserPasswordResetSessions(ctx, reset.UserID); err != nil {
		return "", nil, fmt.Errorf("invalidate reset sessions: %w", err)
	}
	if err := m.Sessions.InvalidateUserSessions(ctx, reset.UserID); err != nil {
		return "", nil, fmt.Errorf("invalidate sessions: %w", err)
	}
	if err := m.Users.UpdateUserPassword(ctx, reset.UserID, password); err != nil {
		return "", nil, fmt.Errorf("update password: %w", err)
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}
	session, err := m.Sessions.CreateSession(ctx, token, reset.UserID, SessionFlags{TwoFactorVerified: reset.TwoFactorVerified})
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

func (m *PasswordResetManager) SendPasswordResetEmail(ctx context.Context, locale, email, code string) error {
	content := i18n.PasswordResetCodeEmail(locale, code, int(PasswordResetLifetime/time.Minute))
	return m.Mailer.Send(ctx, email, content.Subject, content.Text, content.HTML)
}
