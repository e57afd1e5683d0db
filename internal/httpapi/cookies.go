package httpapi

import (
	"net/http"
	"time"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/middleware"
)

type cookieSettings struct {
	secure     bool
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
	sessionTTL time.Duration
}

func (c cookieSettings) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	}
}

func (c cookieSettings) setPair(w http.ResponseWriter, pair sessionjwt.TokenPair) {
	http.SetCookie(w, c.cookie(middleware.AccessCookieName, pair.AccessToken, c.accessTTL))
	http.SetCookie(w, c.cookie(middleware.RefreshCookieName, pair.RefreshToken, c.refreshTTL))
}

func (c cookieSettings) clear(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

func cookieValue(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
