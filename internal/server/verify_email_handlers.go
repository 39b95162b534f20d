package server

import (
	"log"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/i18n"
)

// verificationRequestFromCookie loads the caller's pending request. A cookie
// pointing at nothing is cleared.
func (s *Server) verificationRequestFromCookie(w http.ResponseWriter, r *http.Request, userID string) (*auth.EmailVerificationRequest, error) {
	id := auth.CookieValue(r, auth.EmailVerificationCookieName)
	if id == "" {
		return nil, nil
	}
	req, err := s.Verifications.GetUserEmailVerificationRequest(r.Context(), userID, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		s.Cookies.DeleteEmailVerificationRequest(w)
	}
	return req, nil
}

// issueVerification replaces any pending request with a new one for email,
// mails the code and points the cookie at it.
func (s *Server) issueVerification(w http.ResponseWriter, r *http.Request, userID, email string) (*auth.EmailVerificationRequest, error) {
	ctx := r.Context()
	req, err := s.Verifications.CreateEmailVerificationRequest(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if err := s.Verifications.SendVerificationEmail(ctx, i18n.LocaleFromRequest(r), req.Email, req.Code); err != nil {
		return nil, err
	}
	s.Cookies.SetEmailVerificationRequest(w, req)
	return req, nil
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if v.User.Registered2FA && !v.Session.TwoFactorVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if !s.limits.verifyEmail.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	ctx := r.Context()
	verification, err := s.verificationRequestFromCookie(w, r, v.User.ID)
	if err != nil {
		log.Printf("verify email: load request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	if verification == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
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
	if !s.limits.verifyEmail.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	if s.Verifications.Expired(verification) {
		if _, err := s.issueVerification(w, r, v.User.ID, verification.Email); err != nil {
			log.Printf("verify email: reissue failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to send verification code")
			return
		}
		writeError(w, http.StatusBadRequest, "The verification code was expired. We sent another code to your inbox.")
		return
	}
	if !auth.CodesEqual(verification.Code, req.Code) {
		writeError(w, http.StatusBadRequest, "Incorrect code.")
		return
	}

	if err := s.Verifications.DeleteUserEmailVerificationRequest(ctx, v.User.ID); err != nil {
		log.Printf("verify email: delete requests failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	if err := s.Resets.InvalidateUserPasswordResetSessions(ctx, v.User.ID); err != nil {
		log.Printf("verify email: invalidate reset sessions failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	if err := s.Users.UpdateUserEmailAndSetEmailAsVerified(ctx, v.User.ID, verification.Email); err != nil {
		log.Printf("verify email: update email failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	s.Cookies.DeleteEmailVerificationRequest(w)
	s.audit(r, auth.AuditEmailVerified, v.User.ID, map[string]interface{}{"email": verification.Email})

	next := "/"
	if !v.User.Registered2FA {
		next = "/2fa/setup"
	}
	writeNext(w, "Email verified", next)
}

func (s *Server) handleResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if v.User.Registered2FA && !v.Session.TwoFactorVerified {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if !s.limits.sendVerifyEmail.Check(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	verification, err := s.verificationRequestFromCookie(w, r, v.User.ID)
	if err != nil {
		log.Printf("resend verification: load request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send verification code")
		return
	}

	email := v.User.Email
	if verification == nil {
		if v.User.EmailVerified {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
	} else {
		email = verification.Email
	}
	if !s.limits.sendVerifyEmail.Consume(v.User.ID, 1) {
		tooManyRequests(w)
		return
	}

	if _, err := s.issueVerification(w, r, v.User.ID, email); err != nil {
		log.Printf("resend verification: issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send verification code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "A new code was sent to your inbox."})
}
