package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/middleware"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.log))
	r.Use(s.recoverer)
	r.Use(s.clientIP)
	r.Use(bodySizeLimit)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(s.meAuthenticator()))
			r.Get("/me", s.handleMe)
		})
	})

	return r
}

// meAuthenticator prefers an access credential and falls back to the cookie
// session when one is presented and sessions are enabled.
func (s *Server) meAuthenticator() middleware.Authenticator {
	creds := middleware.CredentialAuthenticator{Engine: s.engine}
	if !s.engine.SessionsEnabled() {
		return creds
	}
	sessions := middleware.SessionAuthenticator{Engine: s.engine}
	return middleware.AuthenticatorFunc(func(r *http.Request) (*sessionjwt.AuthResult, error) {
		if r.Header.Get("Authorization") == "" && cookieValue(r, middleware.AccessCookieName) == "" &&
			cookieValue(r, s.engine.SessionCookieName()) != "" {
			return sessions.Authenticate(r)
		}
		return creds.Authenticate(r)
	})
}
