package middleware

import (
	"errors"
	"net/http"
	"time"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

// SessionAuthenticator accepts a signed session cookie backed by the store.
type SessionAuthenticator struct {
	Engine *sessionjwt.Engine
}

func (a SessionAuthenticator) Authenticate(r *http.Request) (*sessionjwt.AuthResult, error) {
	if a.Engine == nil || !a.Engine.SessionsEnabled() {
		return nil, sessionjwt.ErrEngineNotReady
	}
	raw := cookieValue(r, a.Engine.SessionCookieName())
	if raw == "" {
		return nil, &Failure{Status: http.StatusUnauthorized, Message: "Not authenticated", Err: sessionjwt.ErrUnauthenticated}
	}

	sess, err := a.Engine.LoadSession(r.Context(), raw)
	if err != nil {
		if errors.Is(err, sessionjwt.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, &Failure{Status: http.StatusUnauthorized, Message: "Not authenticated", Err: err}
	}
	return &sessionjwt.AuthResult{
		UserID:    sess.UserID,
		IssuedAt:  time.Unix(sess.CreatedAt, 0),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

// RequireSession guards a route with [SessionAuthenticator].
func RequireSession(engine *sessionjwt.Engine) func(http.Handler) http.Handler {
	return Guard(SessionAuthenticator{Engine: engine})
}
