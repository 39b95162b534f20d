package server

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ProfessorNova/focusflow/internal/auth"
	"github.com/ProfessorNova/focusflow/internal/config"
	"github.com/ProfessorNova/focusflow/internal/ratelimit"
)

// PasswordStrength decides whether a new password may be used.
type PasswordStrength interface {
	Verify(ctx context.Context, password string) (bool, error)
}

// Services bundles the auth managers the handlers drive.
type Services struct {
	Users         *auth.UserService
	Sessions      *auth.SessionManager
	Resets        *auth.PasswordResetManager
	Verifications *auth.EmailVerificationManager
	TwoFactor     *auth.TwoFactor
	Strength      PasswordStrength
	Audit         *auth.AuditLogger
}

type Server struct {
	Services
	Config         config.Config
	Cookies        auth.Cookies
	limits         *limiters
	trustedProxies []net.IPNet
}

// NewServer wires svc behind the HTTP API. opts are passed to every rate
// limiter, which is how tests freeze time.
func NewServer(cfg config.Config, svc Services, opts ...ratelimit.Option) *Server {
	return &Server{
		Services:       svc,
		Config:         cfg,
		Cookies:        auth.Cookies{Secure: cfg.CookieSecure},
		limits:         newLimiters(opts...),
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  log.New(log.Writer(), "", log.Flags()),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(s.rateLimit)
	r.Use(s.loadSession)

	route := func(method, path string, h http.HandlerFunc) {
		r.With(s.requireAccess(accessFor(method, path))).Method(method, path, h)
	}

	route(http.MethodPost, "/api/signup", s.handleSignup)
	route(http.MethodPost, "/api/login", s.handleLogin)
	route(http.MethodPost, "/api/logout", s.handleLogout)
	route(http.MethodGet, "/api/me", s.handleMe)

	route(http.MethodPost, "/api/verify-email", s.handleVerifyEmail)
	route(http.MethodPost, "/api/verify-email/resend", s.handleResendVerificationEmail)

	route(http.MethodGet, "/api/2fa/setup", s.handleTwoFactorSetupStart)
	route(http.MethodPost, "/api/2fa/setup", s.handleTwoFactorSetup)
	route(http.MethodPost, "/api/2fa", s.handleTwoFactorVerify)
	route(http.MethodPost, "/api/2fa/reset", s.handleTwoFactorReset)
	route(http.MethodGet, "/api/recovery-code", s.handleRecoveryCode)

	route(http.MethodPost, "/api/forgot-password", s.handleForgotPassword)
	route(http.MethodPost, "/api/reset-password/verify-email", s.handleResetPasswordVerifyEmail)
	route(http.MethodPost, "/api/reset-password/2fa", s.handleResetPasswordTwoFactor)
	route(http.MethodPost, "/api/reset-password/recovery-code", s.handleResetPasswordRecoveryCode)
	route(http.MethodPost, "/api/reset-password", s.handleResetPassword)

	route(http.MethodGet, "/api/settings", s.handleSettings)
	route(http.MethodGet, "/api/settings/activity", s.handleSettingsActivity)
	route(http.MethodGet, "/api/settings/sessions", s.handleSettingsSessions)
	route(http.MethodPost, "/api/settings/password", s.handleUpdatePassword)
	route(http.MethodPost, "/api/settings/email", s.handleUpdateEmail)

	return r
}
