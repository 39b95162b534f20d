package server

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
)

// Length of a base64 encoded 20 byte TOTP key.
const encodedTOTPKeyLen = 28

func (s *Server) handleTwoFactorSetupStart(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())

	key, err := auth.GenerateTOTPKey()
	if err != nil {
		log.Printf("2fa setup: generate key failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start setup")
		return
	}
	uri, qr, err := s.TwoFactor.KeyURI(v.User.Username, key)
	if err != nil {
		log.Printf("2fa setup: build key uri failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start setup")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"encodedTOTPKey": base64.StdEncoding.EncodeToString(key),
		"keyURI":         uri,
		"qrCode":         qr,
	})
}

type twoFactorSetupRequest struct {
	Key  string `json:"key"`
	Code string `json:"code"`
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if !s.limits.totpSetup.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	var req twoFactorSetupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Key == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Please enter your code")
		return
	}
	if len(req.Key) != encodedTOTPKeyLen {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}
	key, err := base64.StdEncoding.DecodeString(req.Key)
	if err != nil || len(key) != 20 {
		writeError(w, http.StatusBadRequest, "Invalid key")
		return
	}
	if !s.limits.totpSetup.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	ok, err := s.TwoFactor.RegisterTOTP(r.Context(), v.Session.ID, v.User.ID, key, req.Code)
	if err != nil {
		log.Printf("2fa setup: register key for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to enable two-factor authentication")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid code")
		return
	}
	s.audit(r, auth.AuditTOTPRegistered, v.User.ID, nil)
	writeNext(w, "Two-factor authentication enabled", "/recovery-code")
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if !v.User.EmailVerified || !v.User.Registered2FA {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if !s.limits.totp.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Enter your code")
		return
	}
	if !s.limits.totp.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	ctx := r.Context()
	ok, err := s.TwoFactor.VerifyUserTOTP(ctx, v.User.ID, req.Code)
	if err != nil {
		log.Printf("2fa: verify code for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid code")
		return
	}
	s.limits.totp.Reset(v.User.ID)

	if err := s.Sessions.SetSessionAs2FAVerified(ctx, v.Session.ID); err != nil {
		log.Printf("2fa: mark session verified failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	writeNext(w, "Verified", "/")
}

func (s *Server) handleTwoFactorReset(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if !v.User.EmailVerified || !v.User.Registered2FA || v.Session.TwoFactorVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if !s.limits.recoveryCode.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Please enter your code")
		return
	}
	if !s.limits.recoveryCode.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	ok, err := s.TwoFactor.ResetUser2FAWithRecoveryCode(r.Context(), v.User.ID, req.Code)
	if err != nil {
		log.Printf("2fa reset: recovery for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to reset two-factor authentication")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid recovery code")
		return
	}
	s.limits.recoveryCode.Reset(v.User.ID)
	s.audit(r, auth.AuditTOTPReset, v.User.ID, map[string]interface{}{"via": "recovery_code"})
	writeNext(w, "Two-factor authentication reset", "/2fa/setup")
}

// handleRecoveryCode issues a fresh recovery code on every call, so the
// code shown is always the only valid one.
func (s *Server) handleRecoveryCode(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	code, err := s.TwoFactor.ResetUserRecoveryCode(r.Context(), v.User.ID)
	if err != nil {
		log.Printf("recovery code: reset for %s failed: %v", v.User.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create recovery code")
		return
	}
	s.audit(r, auth.AuditRecoveryCodeReset, v.User.ID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"recoveryCode": code})
}
