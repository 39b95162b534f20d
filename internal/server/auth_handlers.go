package server

import (
	"log"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/i18n"
)

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, s.trustedProxies)
	if !s.limits.signupIP.Check(ip, 1) {
		tooManyRequests(w)
		return
	}

	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter your username, email, and password")
		return
	}
	if !auth.VerifyEmailInput(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	ctx := r.Context()
	available, err := s.Users.CheckEmailAvailability(ctx, req.Email)
	if err != nil {
		log.Printf("signup: email lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	if !available {
		writeError(w, http.StatusBadRequest, "Email is already used")
		return
	}
	if !auth.VerifyUsernameInput(req.Username) {
		writeError(w, http.StatusBadRequest, "Invalid username")
		return
	}
	strong, err := s.Strength.Verify(ctx, req.Password)
	if err != nil {
		log.Printf("signup: password strength check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to check password")
		return
	}
	if !strong {
		writeError(w, http.StatusBadRequest, "Weak password")
		return
	}
	if !s.limits.signupIP.Consume(ip, 1) {
		tooManyRequests(w)
		return
	}

	user, err := s.Users.CreateUser(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		log.Printf("signup: create user failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	verification, err := s.Verifications.CreateEmailVerificationRequest(ctx, user.ID, user.Email)
	if err != nil {
		log.Printf("signup: create verification request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	if err := s.Verifications.SendVerificationEmail(ctx, i18n.LocaleFromRequest(r), verification.Email, verification.Code); err != nil {
		// The client can ask for a new code through the resend endpoint.
		log.Printf("signup: send verification email to %s failed: %v", verification.Email, err)
	}
	s.Cookies.SetEmailVerificationRequest(w, verification)

	token, err := auth.GenerateSessionToken()
	if err != nil {
		log.Printf("signup: generate session token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	session, err := s.Sessions.CreateSession(ctx, token, user.ID, auth.SessionFlags{TwoFactorVerified: false})
	if err != nil {
		log.Printf("signup: create session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.Cookies.SetSessionToken(w, token, session.ExpiresAt)
	s.audit(r, auth.AuditSignup, user.ID, nil)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created. Check your inbox for a verification code.",
		"next":    nextLoginStep(user, session.TwoFactorVerified),
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, s.trustedProxies)
	if !s.limits.loginIP.Check(ip, 1) {
		tooManyRequests(w)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing fields")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter your email and password.")
		return
	}
	if !auth.VerifyEmailInput(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	ctx := r.Context()
	user, err := s.Users.GetUserFromEmail(ctx, req.Email)
	if err != nil {
		log.Printf("login: lookup by email failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "Account does not exist")
		return
	}
	if !s.limits.loginIP.Consume(ip, 1) {
		tooManyRequests(w)
		return
	}
	if !s.limits.login.Consume(user.ID) {
		s.audit(r, auth.AuditLoginFailed, user.ID, map[string]interface{}{"reason": "throttled"})
		tooManyRequests(w)
		return
	}

	valid, err := s.Users.VerifyPassword(ctx, user.ID, req.Password)
	if err != nil {
		log.Printf("login: verify password for %s failed: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	if !valid {
		s.audit(r, auth.AuditLoginFailed, user.ID, map[string]interface{}{"reason": "password"})
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}
	s.limits.login.Reset(user.ID)

	token, err := auth.GenerateSessionToken()
	if err != nil {
		log.Printf("login: generate session token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	flags := auth.SessionFlags{TwoFactorVerified: s.Config.Login2FADefault}
	session, err := s.Sessions.CreateSession(ctx, token, user.ID, flags)
	if err != nil {
		log.Printf("login: create session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.Cookies.SetSessionToken(w, token, session.ExpiresAt)
	s.audit(r, auth.AuditLogin, user.ID, nil)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged in",
		"next":    nextLoginStep(user, session.TwoFactorVerified),
		"user":    user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	if err := s.Sessions.InvalidateSession(r.Context(), v.Session.ID); err != nil {
		log.Printf("logout: invalidate session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	s.Cookies.DeleteSessionToken(w)
	s.audit(r, auth.AuditLogout, v.User.ID, nil)
	writeNext(w, "Logged out", "/login")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    v.User,
		"session": v.Session,
		"next":    nextLoginStep(v.User, v.Session.TwoFactorVerified),
	})
}
