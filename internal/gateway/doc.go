// Package gateway serves the tollgate HTTP API.
//
// # Overview
//
// The gateway owns the store and constructs every authority from it: API
// keys, sessions, passwords, verification tokens, the login throttle and the
// usage ledger. The access gate composes the credential authorities with the
// ledger, and the route table in router.go decides which routes pass through
// it and under which policy.
//
// # HTTP API
//
//   - GET /health - Liveness check
//   - GET /api/v1/info - Product name and version
//   - GET /api/v1/tools/status - Tools available to the caller (API key)
//   - POST /api/v1/tools/example-tool - Metered placeholder tool (API key)
//   - GET /api/v1/usage - Current period usage (API key)
//   - POST /api/v1/auth/signup - Create an account, returns the API key once
//   - POST /api/v1/auth/login - Password login, sets the session cookie
//   - GET /api/v1/auth/verify?token= - Confirm an email address
//   - POST /api/v1/auth/logout - End the current session (cookie)
//   - GET /api/v1/account - Account details and usage (cookie)
//   - POST /api/v1/account/api-key - Rotate the API key (cookie)
//   - POST /api/v1/account/password - Change password, revokes all sessions (cookie)
//
// # Errors
//
// Every error body has the shape
//
//	{"error": "human readable", "reason": "machine_code"}
//
// with "limit" and "used" added for quota_exceeded and "detail" added for
// internal errors when app.debug is set.
//
// # Listeners
//
// Run serves on server.http_addr, or joins the tailnet through tsnet when
// tailscale.enabled is set (plain :80, :443 with tailnet certificates, or
// Funnel). Expired sessions and idle login limiters are swept in the
// background while Run is active.
package gateway
