package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ProfessorNova/focusflow/internal/i18n"
)

const EmailVerificationLifetime = 10 * time.Minute

type EmailVerificationRequest struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Code      string    `json:"-"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EmailVerificationManager keeps at most one outstanding request per user.
type EmailVerificationManager struct {
	Requests EmailVerificationStore
	Mailer   Mailer
	now      func() time.Time
}

func NewEmailVerificationManager(requests EmailVerificationStore, mailer Mailer) *EmailVerificationManager {
	return &EmailVerificationManager{Requests: requests, Mailer: mailer, now: time.Now}
}

func (m *EmailVerificationManager) CreateEmailVerificationRequest(ctx context.Context, userID, email string) (*EmailVerificationRequest, error) {
	if err := m.DeleteUserEmailVerificationRequest(ctx, userID); err != nil {
		return nil, err
	}

	raw, err := randomBytes(20)
	if err != nil {
		return nil, err
	}
	code, err := GenerateRandomOTP()
	if err != nil {
		return nil, err
	}
	req := EmailVerificationRequest{
		ID:        strings.ToLower(base32NoPad.EncodeToString(raw)),
		UserID:    userID,
		Code:      code,
		Email:     email,
		ExpiresAt: m.now().Add(EmailVerificationLifetime),
	}
	if err := m.Requests.CreateEmailVerificationRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create email verification request: %w", err)
	}
	return &req, nil
}

// GetUserEmailVerificationRequest returns the request only if it belongs to
// userID. Expired requests are returned as is; callers decide whether to
// reissue.
func (m *EmailVerificationManager) GetUserEmailVerificationRequest(ctx context.Context, userID, id string) (*EmailVerificationRequest, error) {
	if id == "" {
		return nil, nil
	}
	return m.Requests.GetEmailVerificationRequest(ctx, userID, id)
}

func (m *EmailVerificationManager) DeleteUserEmailVerificationRequest(ctx context.Context, userID string) error {
	if err := m.Requests.DeleteUserEmailVerificationRequests(ctx, userID); err != nil {
		return fmt.Errorf("delete email verification requests: %w", err)
	}
	return nil
}

func (m *EmailVerificationManager) Expired(req *EmailVerificationRequest) bool {
	return !m.now().Before(req.ExpiresAt)
}

func (m *EmailVerificationManager) SendVerificationEmail(ctx context.Context, locale, email, code string) error {
	content := i18n.VerificationEmail(locale, code, int(EmailVerificationLifetime/time.Minute))
	return m.Mailer.Send(ctx, email, content.Subject, content.Text, content.HTML)
}
