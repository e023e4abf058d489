// ABOUTME: Session cookie emission and clearing
// ABOUTME: Max-Age mirrors the session lifetime

package auth

import (
	"net/http"
)

// DefaultSessionCookieName is used when no name is configured.
const DefaultSessionCookieName = "tollgate_session"

// SessionCookie writes and reads the session cookie.
type SessionCookie struct {
	Name   string
	Secure bool // set in production
}

func (c SessionCookie) name() string {
	if c.Name == "" {
		return DefaultSessionCookieName
	}
	return c.Name
}

// Set writes the raw session token.
func (c SessionCookie) Set(w http.ResponseWriter, token string, remember bool) {
	ttl := SessionTTL
	if remember {
		ttl = RememberMeTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear instructs the browser to drop the cookie.
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token returns the session token carried by r, or "".
func (c SessionCookie) Token(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}
