package middleware

import (
	"net/http"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

const (
	// AccessCookieName and RefreshCookieName are the credential cookies set
	// at login.
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// CredentialAuthenticator accepts an access credential from the
// Authorization bearer header or the access cookie. It never consults the
// store.
type CredentialAuthenticator struct {
	Engine *sessionjwt.Engine
}

func (a CredentialAuthenticator) Authenticate(r *http.Request) (*sessionjwt.AuthResult, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = cookieValue(r, AccessCookieName)
	}

	if token == "" {
		if cookieValue(r, RefreshCookieName) == "" {
			return nil, &Failure{Status: http.StatusBadRequest, Message: "Refresh token is missing.", Err: sessionjwt.ErrUnauthenticated}
		}
		return nil, &Failure{Status: http.StatusUnauthorized, Message: "Access token is missing.", Err: sessionjwt.ErrUnauthenticated}
	}

	if a.Engine == nil {
		return nil, sessionjwt.ErrEngineNotReady
	}
	res, err := a.Engine.ValidateAccess(r.Context(), token)
	if err != nil {
		return nil, &Failure{Status: http.StatusUnauthorized, Message: "Invalid or expired access token.", Err: err}
	}
	return res, nil
}

// RequireCredential guards a route with [CredentialAuthenticator].
func RequireCredential(engine *sessionjwt.Engine) func(http.Handler) http.Handler {
	return Guard(CredentialAuthenticator{Engine: engine})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
