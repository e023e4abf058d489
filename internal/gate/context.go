// ABOUTME: Request context helpers for admitted calls
// ABOUTME: Carries the usage snapshot next to the caller's identity

package gate

import (
	"context"

	"github.com/lautrek/tollgate/internal/auth"
	"github.com/lautrek/tollgate/internal/billing"
)

type usageKey struct{}

// WithAdmission attaches the identity and usage snapshot to ctx.
func WithAdmission(ctx context.Context, a *Admission) context.Context {
	ctx = auth.WithIdentity(ctx, a.Identity)
	if a.Usage != nil {
		ctx = context.WithValue(ctx, usageKey{}, a.Usage)
	}
	return ctx
}

// UsageFromContext returns the usage snapshot of a metered request, or nil.
func UsageFromContext(ctx context.Context) *billing.Usage {
	u, _ := ctx.Value(usageKey{}).(*billing.Usage)
	return u
}
