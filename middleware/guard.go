package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

type authResultContextKey struct{}

// Authenticator resolves the caller of a request. Implementations return a
// *Failure for rejections that carry their own status and message.
type Authenticator interface {
	Authenticate(r *http.Request) (*sessionjwt.AuthResult, error)
}

// AuthenticatorFunc adapts a function to [Authenticator].
type AuthenticatorFunc func(r *http.Request) (*sessionjwt.AuthResult, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (*sessionjwt.AuthResult, error) {
	return f(r)
}

// Failure is a client-facing authentication rejection.
type Failure struct {
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func AuthResultFromContext(ctx context.Context) (*sessionjwt.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionjwt.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx the way [Guard] does.
func WithAuthResult(ctx context.Context, res *sessionjwt.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard rejects requests that a does not authenticate and otherwise stores
// the result in the request context.
func Guard(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			res, err := a.Authenticate(r)
			if err != nil {
				status, msg := failureResponse(err)
				writeError(w, status, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

func failureResponse(err error) (int, string) {
	var f *Failure
	switch {
	case errors.As(err, &f):
		return f.Status, f.Message
	case errors.Is(err, sessionjwt.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable."
	default:
		return http.StatusUnauthorized, "Not authenticated"
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
