package auth

import (
	"regexp"
	"strings"
	"time"
)

// User is the projection handed to handlers. Secrets stay on UserRecord.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	EmailVerified bool       `json:"emailVerified"`
	Registered2FA bool       `json:"registered2FA"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// UserRecord is a stored user row. RecoveryCode and TOTPKey are encrypted.
type UserRecord struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  string
	EmailVerified bool
	RecoveryCode  []byte
	TOTPKey       []byte
	CreatedAt     time.Time
	LastLogin     *time.Time
}

func (r *UserRecord) User() *User {
	return &User{
		ID:            r.ID,
		Email:         r.Email,
		Username:      r.Username,
		EmailVerified: r.EmailVerified,
		Registered2FA: r.TOTPKey != nil,
		CreatedAt:     r.CreatedAt,
		LastLogin:     r.LastLogin,
	}
}

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

func VerifyEmailInput(email string) bool {
	return len(email) < 256 && emailPattern.MatchString(email)
}

func VerifyUsernameInput(username string) bool {
	return len(username) > 3 && len(username) < 32 && strings.TrimSpace(username) == username
}
