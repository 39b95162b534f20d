package auth

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditLogin              = "login"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditSignup             = "signup"
	AuditEmailVerified      = "email_verified"
	AuditTOTPRegistered     = "totp_registered"
	AuditTOTPReset          = "totp_reset"
	AuditRecoveryCodeReset  = "recovery_code_reset"
	AuditPasswordChanged    = "password_changed"
	AuditPasswordResetStart = "password_reset_started"
	AuditPasswordReset      = "password_reset"
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends events to a capped Redis list per user. Without a
// Redis client events go to the process log instead.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func auditKey(userID string) string {
	if userID == "" {
		return "audit"
	}
	return "audit:" + userID
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	e.Timestamp = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if a == nil || a.Redis == nil {
		log.Printf("audit: %s", data)
		return nil
	}

	key := auditKey(e.UserID)
	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.MaxLen > 0 {
		pipe.LTrim(ctx, key, -a.MaxLen, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit of the newest events for a user, oldest first.
func (a *AuditLogger) Recent(ctx context.Context, userID string, limit int64) ([]AuditEvent, error) {
	if a == nil || a.Redis == nil || limit <= 0 {
		return nil, nil
	}
	raw, err := a.Redis.LRange(ctx, auditKey(userID), -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
