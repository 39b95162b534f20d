package auth

import (
	"context"
	"fmt"
	"time"
)

const (
	SessionLifetime      = 30 * 24 * time.Hour
	sessionRenewalWindow = 15 * 24 * time.Hour
)

type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	ExpiresAt         time.Time `json:"expiresAt"`
	TwoFactorVerified bool      `json:"twoFactorVerified"`
}

type SessionFlags struct {
	TwoFactorVerified bool
}

// SessionValidation is the result of a successful validation. Both fields
// are always set; an invalid token yields a nil *SessionValidation.
type SessionValidation struct {
	Session *Session
	User    *User
}

type SessionManager struct {
	Sessions SessionStore
	Users    UserStore
	now      func() time.Time
}

func NewSessionManager(sessions SessionStore, users UserStore) *SessionManager {
	return &SessionManager{Sessions: sessions, Users: users, now: time.Now}
}

// CreateSession persists a session whose id is the hash of token.
func (m *SessionManager) CreateSession(ctx context.Context, token, userID string, flags SessionFlags) (*Session, error) {
	session := Session{
		ID:                HashToken(token),
		UserID:            userID,
		ExpiresAt:         m.now().Add(SessionLifetime),
		TwoFactorVerified: flags.TwoFactorVerified,
	}
	if err := m.Sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

func (m *SessionManager) ValidateSessionToken(ctx context.Context, token string) (*SessionValidation, error) {
	if token == "" {
		return nil, nil
	}
	id := HashToken(token)

	session, err := m.Sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	now := m.now()
	if !now.Before(session.ExpiresAt) {
		if err := m.Sessions.DeleteSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, nil
	}

	user, err := m.Users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get session user: %w", err)
	}
	if user == nil {
		if err := m.Sessions.DeleteSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete orphaned session: %w", err)
		}
		return nil, nil
	}

	if !now.Before(session.ExpiresAt.Add(-sessionRenewalWindow)) {
		session.ExpiresAt = now.Add(SessionLifetime)
		if err := m.Sessions.UpdateSessionExpiry(ctx, id, session.ExpiresAt); err != nil {
			return nil, fmt.Errorf("renew session: %w", err)
		}
	}

	return &SessionValidation{Session: session, User: user.User()}, nil
}

func (m *SessionManager) InvalidateSession(ctx context.Context, sessionID string) error {
	return m.Sessions.DeleteSession(ctx, sessionID)
}

func (m *SessionManager) InvalidateUserSessions(ctx context.Context, userID string) error {
	return m.Sessions.DeleteUserSessions(ctx, userID)
}

func (m *SessionManager) SetSessionAs2FAVerified(ctx context.Context, sessionID string) error {
	return m.Sessions.SetSessionTwoFactorVerified(ctx, sessionID, true)
}

func (m *SessionManager) ListUserSessions(ctx context.Context, userID string) ([]Session, error) {
	return m.Sessions.ListUserSessions(ctx, userID)
}

func (m *SessionManager) SetUserSessionsAs2FAUnverified(ctx context.Context, userID string) error {
	return m.Sessions.SetUserSessionsTwoFactorVerified(ctx, userID, false)
}
