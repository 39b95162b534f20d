package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps every auth record in process memory. It backs local
// development and tests.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]UserRecord
	sessions      map[string]Session
	resets        map[string]PasswordResetSession
	verifications map[string]EmailVerificationRequest
}

var (
	_ UserStore              = (*MemoryStore)(nil)
	_ SessionStore           = (*MemoryStore)(nil)
	_ PasswordResetStore     = (*MemoryStore)(nil)
	_ EmailVerificationStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]UserRecord),
		sessions:      make(map[string]Session),
		resets:        make(map[string]PasswordResetSession),
		verifications: make(map[string]EmailVerificationRequest),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneUser(u UserRecord) *UserRecord {
	u.RecoveryCode = cloneBytes(u.RecoveryCode)
	u.TOTPKey = cloneBytes(u.TOTPKey)
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return &u
}

func (m *MemoryStore) CreateUser(_ context.Context, user UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %q already registered", user.Email)
		}
	}
	m.users[user.ID] = *cloneUser(user)
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) updateUser(id string, fn func(*UserRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		fn(&u)
		m.users[id] = u
	}
}

func (m *MemoryStore) UpdateUserPasswordHash(_ context.Context, id, hash string) error {
	m.updateUser(id, func(u *UserRecord) { u.PasswordHash = hash })
	return nil
}

func (m *MemoryStore) UpdateUserEmail(_ context.Context, id, email string, verified bool) error {
	m.updateUser(id, func(u *UserRecord) {
		u.Email = email
		u.EmailVerified = verified
	})
	return nil
}

func (m *MemoryStore) SetUserEmailVerifiedIfMatches(_ context.Context, id, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.Email != email {
		return false, nil
	}
	u.EmailVerified = true
	m.users[id] = u
	return true, nil
}

func (m *MemoryStore) UpdateUserTOTPKey(_ context.Context, id string, key []byte) error {
	m.updateUser(id, func(u *UserRecord) { u.TOTPKey = cloneBytes(key) })
	return nil
}

func (m *MemoryStore) UpdateUserRecoveryCode(_ context.Context, id string, code []byte) error {
	m.updateUser(id, func(u *UserRecord) { u.RecoveryCode = cloneBytes(code) })
	return nil
}

func (m *MemoryStore) ResetUserTwoFactor(_ context.Context, id string, recoveryCode []byte) error {
	m.updateUser(id, func(u *UserRecord) {
		u.RecoveryCode = cloneBytes(recoveryCode)
		u.TOTPKey = nil
	})
	return nil
}

func (m *MemoryStore) SetUserLastLogin(_ context.Context, id string, at time.Time) error {
	m.updateUser(id, func(u *UserRecord) { u.LastLogin = &at })
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) UpdateSessionExpiry(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.ExpiresAt = expiresAt
		m.sessions[id] = s
	}
	return nil
}

func (m *MemoryStore) SetSessionTwoFactorVerified(_ context.Context, id string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.TwoFactorVerified = verified
		m.sessions[id] = s
	}
	return nil
}

func (m *MemoryStore) SetUserSessionsTwoFactorVerified(_ context.Context, userID string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == userID {
			s.TwoFactorVerified = verified
			m.sessions[id] = s
		}
	}
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteUserSessions(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryStore) ListUserSessions(_ context.Context, userID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreatePasswordResetSession(_ context.Context, session PasswordResetSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[session.ID] = session
	return nil
}

func (m *MemoryStore) GetPasswordResetSession(_ context.Context, id string) (*PasswordResetSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.resets[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) SetPasswordResetSessionEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.resets[id]; ok {
		s.EmailVerified = true
		m.resets[id] = s
	}
	return nil
}

func (m *MemoryStore) SetPasswordResetSessionTwoFactorVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.resets[id]; ok {
		s.TwoFactorVerified = true
		m.resets[id] = s
	}
	return nil
}

func (m *MemoryStore) DeletePasswordResetSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resets, id)
	return nil
}

func (m *MemoryStore) DeleteUserPasswordResetSessions(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.resets {
		if s.UserID == userID {
			delete(m.resets, id)
		}
	}
	return nil
}

func (m *MemoryStore) CreateEmailVerificationRequest(_ context.Context, req EmailVerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[req.ID] = req
	return nil
}

func (m *MemoryStore) GetEmailVerificationRequest(_ context.Context, userID, id string) (*EmailVerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.verifications[id]
	if !ok || req.UserID != userID {
		return nil, nil
	}
	return &req, nil
}

func (m *MemoryStore) DeleteUserEmailVerificationRequests(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, req := range m.verifications {
		if req.UserID == userID {
			delete(m.verifications, id)
		}
	}
	return nil
}
