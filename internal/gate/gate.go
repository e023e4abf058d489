// ABOUTME: Admission pipeline combining credential resolution, tier checks and quota
// ABOUTME: Produces an Admission or a typed Rejection for every request

package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lautrek/tollgate/internal/auth"
	"github.com/lautrek/tollgate/internal/billing"
	"github.com/lautrek/tollgate/internal/store"
)

// Reason is a machine-readable rejection code.
type Reason string

const (
	ReasonMissingCredential Reason = "missing_credential"
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonInsufficientTier  Reason = "insufficient_tier"
	ReasonQuotaExceeded     Reason = "quota_exceeded"
	ReasonStoreUnavailable  Reason = "store_unavailable"
)

// Rejection is the terminal failure state of Admit.
type Rejection struct {
	Reason  Reason
	Message string // safe to show to any caller
	Limit   int64  // set for ReasonQuotaExceeded
	Used    int64  // set for ReasonQuotaExceeded
	Err     error  // underlying cause, never shown in production
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return string(r.Reason)
}

// Status maps the rejection to an HTTP status code.
func (r *Rejection) Status() int {
	switch r.Reason {
	case ReasonMissingCredential:
		return http.StatusUnauthorized
	case ReasonInvalidCredential, ReasonInsufficientTier:
		return http.StatusForbidden
	case ReasonQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CredentialKind selects how a route authenticates.
type CredentialKind int

const (
	// CredentialAPIKey reads X-API-Key or Authorization: Bearer.
	CredentialAPIKey CredentialKind = iota
	// CredentialSession reads the session cookie.
	CredentialSession
)

// Policy is the per-route admission rule.
type Policy struct {
	Credential CredentialKind
	MinTier    store.Tier // empty means any tier
	Metered    bool       // consume one operation on admission
}

// Validate reports a policy that names a tier outside the closed set.
func (p Policy) Validate() error {
	if p.MinTier != "" && !p.MinTier.Valid() {
		return fmt.Errorf("route policy: %w: %q", store.ErrUnknownTier, p.MinTier)
	}
	return nil
}

// Request carries the credential material of an inbound call.
type Request struct {
	Header       http.Header
	SessionToken string
}

// Admission is the successful outcome of Admit.
type Admission struct {
	Identity *auth.Identity
	Usage    *billing.Usage // nil on unmetered routes
}

// APIKeyVerifier resolves API keys.
type APIKeyVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// SessionIdentifier resolves session tokens.
type SessionIdentifier interface {
	Identify(ctx context.Context, token string) (*auth.Identity, error)
}

// Meter consumes quota.
type Meter interface {
	CheckAndConsume(ctx context.Context, userID string, tier store.Tier) (*billing.Usage, error)
}

// Gate composes the authorities into the admission pipeline.
type Gate struct {
	keys     APIKeyVerifier
	sessions SessionIdentifier
	meter    Meter
	logger   *slog.Logger
}

// New creates a Gate.
func New(keys APIKeyVerifier, sessions SessionIdentifier, meter Meter) *Gate {
	return &Gate{
		keys:     keys,
		sessions: sessions,
		meter:    meter,
		logger:   slog.Default().With("component", "gate"),
	}
}

// Admit runs the pipeline for one request. Exactly one of the results is non-nil.
func (g *Gate) Admit(ctx context.Context, req Request, policy Policy) (*Admission, *Rejection) {
	if err := policy.Validate(); err != nil {
		return nil, g.unavailable(err)
	}

	// Extract-Credential
	var token string
	switch policy.Credential {
	case CredentialSession:
		token = req.SessionToken
	default:
		token = auth.ExtractCredential(req.Header)
	}
	if token == "" {
		return nil, &Rejection{Reason: ReasonMissingCredential, Message: "missing credential"}
	}

	// Resolve-Identity
	var (
		identity *auth.Identity
		err      error
	)
	if policy.Credential == CredentialSession {
		identity, err = g.sessions.Identify(ctx, token)
	} else {
		identity, err = g.keys.Verify(ctx, token)
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			return nil, &Rejection{Reason: ReasonInvalidCredential, Message: "invalid credential"}
		}
		return nil, g.unavailable(err)
	}

	// Authorize-Tier
	if policy.MinTier != "" && !identity.Tier.AtLeast(policy.MinTier) {
		return nil, &Rejection{
			Reason:  ReasonInsufficientTier,
			Message: fmt.Sprintf("requires %s tier", policy.MinTier),
		}
	}

	admission := &Admission{Identity: identity}
	if !policy.Metered {
		return admission, nil
	}

	// Consume-Quota
	usage, err := g.meter.CheckAndConsume(ctx, identity.UserID, identity.Tier)
	if err != nil {
		var qe *billing.QuotaExceededError
		if errors.As(err, &qe) {
			return nil, &Rejection{
				Reason:  ReasonQuotaExceeded,
				Message: "rate limit exceeded",
				Limit:   qe.Limit,
				Used:    qe.Used,
			}
		}
		return nil, g.unavailable(err)
	}
	admission.Usage = usage

	return admission, nil
}

func (g *Gate) unavailable(err error) *Rejection {
	g.logger.Error("admission failed", "error", err)
	return &Rejection{Reason: ReasonStoreUnavailable, Message: "internal error", Err: err}
}
