// ABOUTME: Tests for credential and client address extraction
// ABOUTME: Covers header precedence and proxy header handling

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, ""},
		{"api key header", map[string]string{"X-API-Key": "lt_key"}, "lt_key"},
		{"bearer", map[string]string{"Authorization": "Bearer lt_bearer"}, "lt_bearer"},
		{"api key wins", map[string]string{"X-API-Key": "lt_key", "Authorization": "Bearer lt_bearer"}, "lt_key"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, ""},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, ""},
		{"lowercase scheme", map[string]string{"Authorization": "bearer lt_x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractCredential(h))
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.2:1234", "198.51.100.7"},
		{"forwarded beats real ip", map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "203.0.113.5"},
		{"remote addr", nil, "192.0.2.44:5678", "192.0.2.44"},
		{"remote addr without port", nil, "192.0.2.44", "192.0.2.44"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"host and port", "192.0.2.44:5678", "192.0.2.44"},
		{"ipv6", "[2001:db8::1]:443", "2001:db8::1"},
		{"without port", "192.0.2.44", "192.0.2.44"},
		{"nothing", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			r.Header.Set("X-Forwarded-For", "203.0.113.5")
			r.Header.Set("X-Real-IP", "198.51.100.7")
			assert.Equal(t, tt.want, RemoteIP(r))
		})
	}
}
