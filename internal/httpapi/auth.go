package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/internal/logger"
	"github.com/rkhaya/express-session-jwt/middleware"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgRefreshMissing     = "Refresh token is missing."
	msgRefreshInvalid     = "Invalid or expired refresh token."
	msgUnavailable        = "Service temporarily unavailable."
	msgInternal           = "Internal server error."
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		logger.From(r.Context(), s.log).Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if strings.TrimSpace(identifier) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := s.engine.Login(r.Context(), identifier, req.Password)
	if err != nil {
		var rle *sessionjwt.RateLimitError
		switch {
		case errors.As(err, &rle):
			setRateLimitHeaders(w, rle.Limit, rle.Remaining, rle.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(rle.RetryAfter)))
			writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
				messageResponse: messageResponse{Success: false, Message: rle.Message},
				Limit:           rle.Limit,
				Remaining:       rle.Remaining,
				RetryAfter:      ceilSeconds(rle.RetryAfter),
				Window:          ceilSeconds(rle.Window),
			})
		case errors.Is(err, sessionjwt.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			s.writeFault(w, r, "login failed", err)
		}
		return
	}

	if res.RateLimit.Limit > 0 {
		setRateLimitHeaders(w, res.RateLimit.Limit, res.RateLimit.Remaining, res.RateLimit.Window)
	}
	s.cookies.setPair(w, res.Pair)

	if s.engine.SessionsEnabled() {
		value, _, err := s.engine.CreateSession(r.Context(), res.Principal)
		if err != nil {
			logger.From(r.Context(), s.log).Warn("session not created", zap.Error(err))
		} else {
			http.SetCookie(w, s.cookies.cookie(s.engine.SessionCookieName(), value, s.cookies.sessionTTL))
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{
		messageResponse: messageResponse{Success: true, Message: "Logged in successfully"},
		User:            summarize(res.Principal),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := s.refreshToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, msgRefreshMissing)
		return
	}

	pair, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, sessionjwt.ErrInvalidToken) || errors.Is(err, sessionjwt.ErrExpiredOrRevoked) {
			s.cookies.clear(w, middleware.AccessCookieName, middleware.RefreshCookieName)
			writeError(w, http.StatusUnauthorized, msgRefreshInvalid)
			return
		}
		s.writeFault(w, r, "refresh failed", err)
		return
	}

	s.cookies.setPair(w, *pair)
	writeJSON(w, http.StatusOK, refreshResponse{
		messageResponse:  messageResponse{Success: true, Message: "Token refreshed"},
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}

// handleLogout revokes every renewal credential of the presented principal
// and ends the cookie session, if any.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.refreshToken(r)
	sessionCookie := ""
	if s.engine.SessionsEnabled() {
		sessionCookie = cookieValue(r, s.engine.SessionCookieName())
	}
	if token == "" && sessionCookie == "" {
		writeError(w, http.StatusBadRequest, msgRefreshMissing)
		return
	}

	if token != "" {
		revoked, err := s.engine.Logout(r.Context(), token)
		switch {
		case err == nil:
			logger.From(r.Context(), s.log).Debug("logout", zap.Int("revoked", revoked))
		case errors.Is(err, sessionjwt.ErrInvalidToken) && sessionCookie != "":
		case errors.Is(err, sessionjwt.ErrInvalidToken):
			s.cookies.clear(w, middleware.AccessCookieName, middleware.RefreshCookieName)
			writeError(w, http.StatusUnauthorized, msgRefreshInvalid)
			return
		default:
			s.writeFault(w, r, "logout failed", err)
			return
		}
	}

	if sessionCookie != "" {
		if err := s.engine.DestroySession(r.Context(), sessionCookie); err != nil {
			s.writeFault(w, r, "session destroy failed", err)
			return
		}
	}

	s.cookies.clear(w, middleware.AccessCookieName, middleware.RefreshCookieName, s.engine.SessionCookieName())
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	p, err := s.engine.Principal(r.Context(), res.UserID)
	if err != nil {
		if errors.Is(err, sessionjwt.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		s.writeFault(w, r, "principal lookup failed", err)
		return
	}

	sum := summarize(p)
	sum.ID = ""
	writeJSON(w, http.StatusOK, sum)
}

// refreshToken reads the renewal credential from its cookie, falling back to
// a JSON body.
func (s *Server) refreshToken(r *http.Request) string {
	if v := cookieValue(r, middleware.RefreshCookieName); v != "" {
		return v
	}
	if r.Body == nil {
		return ""
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log := logger.From(r.Context(), s.log)
	if errors.Is(err, sessionjwt.ErrStoreUnavailable) {
		log.Warn(msg, zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	log.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func setRateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Duration) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(reset)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func summarize(p sessionjwt.Principal) userSummary {
	return userSummary{
		ID:       p.ID,
		Email:    p.Identifier,
		Username: p.DisplayName,
		Role:     p.Role,
	}
}
