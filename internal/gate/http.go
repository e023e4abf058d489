// ABOUTME: HTTP middleware that runs the admission pipeline in front of handlers
// ABOUTME: Rejections become JSON error envelopes with a machine-readable reason

package gate

import (
	"encoding/json"
	"net/http"

	"github.com/lautrek/tollgate/internal/auth"
)

// ErrorBody is the JSON envelope for rejected requests.
type ErrorBody struct {
	Error  string `json:"error"`
	Reason Reason `json:"reason"`
	Limit  *int64 `json:"limit,omitempty"`
	Used   *int64 `json:"used,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Middleware admits requests under policy. Admitted requests carry their
// identity and usage in the request context.
//
// With debug set, internal error text is included in the response. It panics
// if policy is invalid, like http.ServeMux does for a bad pattern.
func (g *Gate) Middleware(policy Policy, cookie auth.SessionCookie, debug bool) func(http.Handler) http.Handler {
	if err := policy.Validate(); err != nil {
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := Request{Header: r.Header}
			if policy.Credential == CredentialSession {
				req.SessionToken = cookie.Token(r)
			}

			admission, rejection := g.Admit(r.Context(), req, policy)
			if rejection != nil {
				WriteRejection(w, rejection, debug)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAdmission(r.Context(), admission)))
		})
	}
}

// WriteRejection writes the JSON envelope for a rejection.
func WriteRejection(w http.ResponseWriter, rej *Rejection, debug bool) {
	body := ErrorBody{Error: rej.Message, Reason: rej.Reason}
	if rej.Reason == ReasonQuotaExceeded {
		body.Limit = &rej.Limit
		body.Used = &rej.Used
	}
	if debug && rej.Err != nil {
		body.Detail = rej.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status())
	_ = json.NewEncoder(w).Encode(body)
}
