// ABOUTME: Route table binding each HTTP path to its admission policy
// ABOUTME: Public routes skip the gate; everything else runs through it first

package gateway

import (
	"net/http"

	"github.com/lautrek/tollgate/internal/gate"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	apiKeyPolicy  = gate.Policy{Credential: gate.CredentialAPIKey}
	meteredPolicy = gate.Policy{Credential: gate.CredentialAPIKey, Metered: true}
	sessionPolicy = gate.Policy{Credential: gate.CredentialSession}
)

// route is one entry in the route table. A nil policy marks a public route.
type route struct {
	pattern string
	policy  *gate.Policy
	handler http.HandlerFunc
}

// routes returns the full route table.
func (g *Gateway) routes() []route {
	return []route{
		// Health & info
		{"GET /health", nil, g.handleHealth},
		{"GET /api/v1/info", nil, g.handleInfo},

		// Tools
		{"GET /api/v1/tools/status", &apiKeyPolicy, g.handleToolsStatus},
		{"POST /api/v1/tools/example-tool", &meteredPolicy, g.handleExampleTool},
		{"GET /api/v1/usage", &apiKeyPolicy, g.handleUsage},

		// Accounts
		{"POST /api/v1/auth/signup", nil, g.handleSignup},
		{"POST /api/v1/auth/login", nil, g.handleLogin},
		{"GET /api/v1/auth/verify", nil, g.handleVerifyEmail},
		{"POST /api/v1/auth/logout", &sessionPolicy, g.handleLogout},
		{"GET /api/v1/account", &sessionPolicy, g.handleAccount},
		{"POST /api/v1/account/api-key", &sessionPolicy, g.handleRotateAPIKey},
		{"POST /api/v1/account/password", &sessionPolicy, g.handleChangePassword},
	}
}

// registerRoutes mounts the route table on mux.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	debug := g.config.App.Debug
	for _, rt := range g.routes() {
		var h http.Handler = rt.handler
		if rt.policy != nil {
			h = g.gate.Middleware(*rt.policy, g.cookie, debug)(h)
		}
		mux.Handle(rt.pattern, h)
	}
}
