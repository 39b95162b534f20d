package server

import (
	"log"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/i18n"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, s.trustedProxies)
	if !s.limits.forgotIP.Check(ip, 1) {
		tooManyRequests(w)
		return
	}

	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if !auth.VerifyEmailInput(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	ctx := r.Context()
	user, err := s.Users.GetUserFromEmail(ctx, req.Email)
	if err != nil {
		log.Printf("forgot password: lookup by email failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start password reset")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "Account does not exist")
		return
	}
	if !s.limits.forgotIP.Consume(ip, 1) {
		tooManyRequests(w)
		return
	}
	if !s.limits.forgotUser.Consume(user.ID, 1) {
		tooManyRequests(w)
		return
	}

	if err := s.Resets.InvalidateUserPasswordResetSessions(ctx, user.ID); err != nil {
		log.Printf("forgot password: invalidate reset sessions failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start password reset")
		return
	}
	token, err := auth.GenerateSessionToken()
	if err != nil {
		log.Printf("forgot password: generate token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start password reset")
		return
	}
	reset, err := s.Resets.CreatePasswordResetSession(ctx, token, user.ID, user.Email)
	if err != nil {
		log.Printf("forgot password: create reset session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start password reset")
		return
	}
	if err := s.Resets.SendPasswordResetEmail(ctx, i18n.LocaleFromRequest(r), reset.Email, reset.Code); err != nil {
		log.Printf("forgot password: send email to %s failed: %v", reset.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to send reset code")
		return
	}
	s.Cookies.SetPasswordResetSessionToken(w, token, reset.ExpiresAt)
	s.audit(r, auth.AuditPasswordResetStart, user.ID, nil)

	writeNext(w, "We sent a reset code to your inbox.", "/reset-password/verify-email")
}

// passwordResetFromCookie validates the reset cookie. A stale cookie is
// cleared and nil is returned.
func (s *Server) passwordResetFromCookie(w http.ResponseWriter, r *http.Request) (*auth.PasswordResetValidation, error) {
	token := auth.CookieValue(r, auth.PasswordResetCookieName)
	if token == "" {
		return nil, nil
	}
	v, err := s.Resets.ValidatePasswordResetSessionToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if v == nil {
		s.Cookies.DeletePasswordResetSessionToken(w)
	}
	return v, nil
}

// loadPasswordReset answers the request itself and returns nil when there
// is no usable reset session.
func (s *Server) loadPasswordReset(w http.ResponseWriter, r *http.Request) *auth.PasswordResetValidation {
	v, err := s.passwordResetFromCookie(w, r)
	if err != nil {
		log.Printf("reset password: validate reset session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read reset session")
		return nil
	}
	if v == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return nil
	}
	return v
}

func (s *Server) handleResetPasswordVerifyEmail(w http.ResponseWriter, r *http.Request) {
	v := s.loadPasswordReset(w, r)
	if v == nil {
		return
	}
	reset, user := v.Session, v.User
	if reset.EmailVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if !s.limits.resetEmail.Check(user.ID, 1) {
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
	if !s.limits.resetEmail.Consume(user.ID, 1) {
		tooManyRequests(w)
		return
	}
	if !auth.CodesEqual(reset.Code, req.Code) {
		writeError(w, http.StatusBadRequest, "Incorrect code")
		return
	}

	ctx := r.Context()
	if err := s.Resets.SetPasswordResetSessionAsEmailVerified(ctx, reset.ID); err != nil {
		log.Printf("reset password: mark email verified failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	matches, err := s.Users.SetUserAsEmailVerifiedIfEmailMatches(ctx, user.ID, reset.Email)
	if err != nil {
		log.Printf("reset password: set user email verified failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	if !matches {
		writeError(w, http.StatusBadRequest, "Please restart the process")
		return
	}

	next := "/reset-password"
	if user.Registered2FA {
		next = "/reset-password/2fa"
	}
	writeNext(w, "Email verified", next)
}

// resetSecondFactorAllowed reports whether the reset session is at the 2FA
// step: email done, user has a key and 2FA not yet passed.
func resetSecondFactorAllowed(v *auth.PasswordResetValidation) bool {
	return v.Session.EmailVerified && v.User.Registered2FA && !v.Session.TwoFactorVerified
}

func (s *Server) handleResetPasswordTwoFactor(w http.ResponseWriter, r *http.Request) {
	v := s.loadPasswordReset(w, r)
	if v == nil {
		return
	}
	if !resetSecondFactorAllowed(v) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	userID := v.User.ID
	if !s.limits.totp.Check(userID, 1) {
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
	if !s.limits.totp.Consume(userID, 1) {
		tooManyRequests(w)
		return
	}

	ctx := r.Context()
	ok, err := s.TwoFactor.VerifyUserTOTP(ctx, userID, req.Code)
	if err != nil {
		log.Printf("reset password: verify totp for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid code")
		return
	}
	s.limits.totp.Reset(userID)

	if err := s.Resets.SetPasswordResetSessionAs2FAVerified(ctx, v.Session.ID); err != nil {
		log.Printf("reset password: mark 2fa verified failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify code")
		return
	}
	writeNext(w, "Verified", "/reset-password")
}

func (s *Server) handleResetPasswordRecoveryCode(w http.ResponseWriter, r *http.Request) {
	v := s.loadPasswordReset(w, r)
	if v == nil {
		return
	}
	if !resetSecondFactorAllowed(v) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	userID := v.User.ID
	if !s.limits.recoveryCode.Check(userID, 1) {
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
	if !s.limits.recoveryCode.Consume(userID, 1) {
		tooManyRequests(w)
		return
	}

	ctx := r.Context()
	ok, err := s.TwoFactor.ResetUser2FAWithRecoveryCode(ctx, userID, req.Code)
	if err != nil {
		log.Printf("reset password: recovery for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to verify recovery code")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid recovery code")
		return
	}
	s.limits.recoveryCode.Reset(userID)

	if err := s.Resets.SetPasswordResetSessionAs2FAVerified(ctx, v.Session.ID); err != nil {
		log.Printf("reset password: mark 2fa verified failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify recovery code")
		return
	}
	s.audit(r, auth.AuditTOTPReset, userID, map[string]interface{}{"via": "password_reset"})
	writeNext(w, "Verified", "/reset-password")
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	v := s.loadPasswordReset(w, r)
	if v == nil {
		return
	}
	reset, user := v.Session, v.User
	if !reset.EmailVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if user.Registered2FA && !reset.TwoFactorVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}

	ctx := r.Context()
	strong, err := s.Strength.Verify(ctx, req.Password)
	if err != nil {
		log.Printf("reset password: strength check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to check password")
		return
	}
	if !strong {
		writeError(w, http.StatusBadRequest, "Weak password")
		return
	}

	token, session, err := s.Resets.CompletePasswordReset(ctx, reset, req.Password)
	if err != nil {
		log.Printf("reset password: complete for %s failed: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	s.Cookies.SetSessionToken(w, token, session.ExpiresAt)
	s.Cookies.DeletePasswordResetSessionToken(w)
	s.audit(r, auth.AuditPasswordReset, user.ID, nil)

	writeNext(w, "Password updated", "/")
}
