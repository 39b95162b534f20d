package server

import (
	"context"
	"log"
	"net/http"

	"github.com/ProfessorNova/focusflow/internal/auth"
)

type ctxKey string

const sessionContextKey ctxKey = "session"

// rateLimit applies the process wide per-IP bucket. Reads cost less than
// writes.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := 3
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			cost = 1
		}
		if !s.limits.global.Consume(clientIP(r, s.trustedProxies), cost) {
			tooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loadSession validates the session cookie on every request. A valid
// session has its cookie refreshed with the possibly renewed expiry; an
// invalid one has its cookie cleared.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.CookieValue(r, auth.SessionCookieName)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		v, err := s.Sessions.ValidateSessionToken(ctx, token)
		if err != nil {
			log.Printf("session: validate failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to read session")
			return
		}
		if v == nil {
			s.Cookies.DeleteSessionToken(w)
			next.ServeHTTP(w, r)
			return
		}

		s.Cookies.SetSessionToken(w, token, v.Session.ExpiresAt)
		if err := s.Users.SetLastLogin(ctx, v.User.ID); err != nil {
			log.Printf("session: set last login for %s failed: %v", v.User.ID, err)
		}

		ctx = context.WithValue(ctx, sessionContextKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAccess(level Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status, msg := accessAllowed(level, sessionFromContext(r.Context())); status != 0 {
				writeError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFromContext(ctx context.Context) *auth.SessionValidation {
	if val, ok := ctx.Value(sessionContextKey).(*auth.SessionValidation); ok {
		return val
	}
	return nil
}
