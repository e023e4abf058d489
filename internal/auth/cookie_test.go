// ABOUTME: Tests for the session cookie helper
// ABOUTME: Checks lifetime, flags and clearing

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCookie_Set(t *testing.T) {
	tests := []struct {
		name     string
		remember bool
		secure   bool
		maxAge   int
	}{
		{"default", false, false, 86400},
		{"remember me", true, false, 2592000},
		{"production", false, true, 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SessionCookie{Secure: tt.secure}.Set(rec, "tok", tt.remember)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			c := cookies[0]
			assert.Equal(t, DefaultSessionCookieName, c.Name)
			assert.Equal(t, "tok", c.Value)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, tt.maxAge, c.MaxAge)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, tt.secure, c.Secure)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		})
	}
}

func TestSessionCookie_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	SessionCookie{Name: "custom"}.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "custom", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSessionCookie_Token(t *testing.T) {
	c := SessionCookie{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", c.Token(req))

	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: "raw"})
	assert.Equal(t, "raw", c.Token(req))
}
