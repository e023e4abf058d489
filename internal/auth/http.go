// ABOUTME: HTTP helpers for pulling credentials and client addresses from requests
// ABOUTME: API keys come from X-API-Key first, then Authorization: Bearer

package auth

import (
	"net"
	"net/http"
	"strings"
)

// ExtractCredential returns the bearer credential carried by the headers, or
// "" when there is none. X-API-Key wins over Authorization.
func ExtractCredential(h http.Header) string {
	if key := strings.TrimSpace(h.Get("X-API-Key")); key != "" {
		return key
	}
	return extractBearerToken(h.Get("Authorization"))
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(authHeader string) string {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClientIP returns the originating client address: the first X-Forwarded-For
// hop, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RemoteIP returns the host of the connection's remote address, ignoring
// forwarding headers the client controls. Rate limits key on it.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
