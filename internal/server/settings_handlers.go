package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/ProfessorNova/focusflow/internal/auth"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())

	var recoveryCode *string
	if v.User.Registered2FA {
		code, err := s.TwoFactor.GetUserRecoveryCode(r.Context(), v.User.ID)
		if err != nil {
			log.Printf("settings: read recovery code for %s failed: %v", v.User.ID, err)
			writeError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		recoveryCode = &code
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         v.User,
		"recoveryCode": recoveryCode,
	})
}

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

func (s *Server) handleSettingsActivity(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())

	limit := int64(defaultActivityLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if n > maxActivityLimit {
			n = maxActivityLimit
		}
		limit = n
	}

	events, err := s.Audit.Recent(r.Context(), v.User.ID, limit)
	if err != nil {
		log.Printf("settings: read activity for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load activity")
		return
	}
	if events == nil {
		events = []auth.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

type sessionView struct {
	auth.Session
	Current bool `json:"current"`
}

func (s *Server) handleSettingsSessions(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	sessions, err := s.Sessions.ListUserSessions(r.Context(), v.User.ID)
	if err != nil {
		log.Printf("settings: list sessions for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load sessions")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionView{Session: sess, Current: sess.ID == v.Session.ID})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

type updatePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	sessionID := v.Session.ID
	if !s.limits.passwordUpdate.Check(sessionID, 1) {
		tooManyRequests(w)
		return
	}

	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}

	ctx := r.Context()
	strong, err := s.Strength.Verify(ctx, req.NewPassword)
	if err != nil {
		log.Printf("update password: strength check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to check password")
		return
	}
	if !strong {
		writeError(w, http.StatusBadRequest, "Weak password")
		return
	}
	if !s.limits.passwordUpdate.Consume(sessionID, 1) {
		tooManyRequests(w)
		return
	}

	valid, err := s.Users.VerifyPassword(ctx, v.User.ID, req.Password)
	if err != nil {
		log.Printf("update password: verify current password failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}
	if !valid {
		writeError(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	s.limits.passwordUpdate.Reset(sessionID)

	if err := s.Sessions.InvalidateUserSessions(ctx, v.User.ID); err != nil {
		log.Printf("update password: invalidate sessions failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}
	if err := s.Users.UpdateUserPassword(ctx, v.User.ID, req.NewPassword); err != nil {
		log.Printf("update password: store hash failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		log.Printf("update password: generate session token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	session, err := s.Sessions.CreateSession(ctx, token, v.User.ID, auth.SessionFlags{TwoFactorVerified: v.Session.TwoFactorVerified})
	if err != nil {
		log.Printf("update password: create session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.Cookies.SetSessionToken(w, token, session.ExpiresAt)
	s.audit(r, auth.AuditPasswordChanged, v.User.ID, nil)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Updated password"})
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if !s.limits.sendVerifyEmail.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	var req updateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Please enter your email")
		return
	}
	if !auth.VerifyEmailInput(req.Email) {
		writeError(w, http.StatusBadRequest, "Please enter a valid email")
		return
	}

	available, err := s.Users.CheckEmailAvailability(r.Context(), req.Email)
	if err != nil {
		log.Printf("update email: availability check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update email")
		return
	}
	if !available {
		writeError(w, http.StatusBadRequest, "This email is already used")
		return
	}
	if !s.limits.sendVerifyEmail.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	if _, err := s.issueVerification(w, r, v.User.ID, req.Email); err != nil {
		log.Printf("update email: issue verification failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send verification code")
		return
	}
	writeNext(w, "We sent a verification code to your new address.", "/verify-email")
}
