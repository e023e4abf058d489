// ABOUTME: Identity context for tracking the authenticated caller through handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating identity via context

package auth

import (
	"context"
	"fmt"

	"github.com/lautrek/tollgate/internal/store"
)

// Identity is the resolved caller of an admitted request.
type Identity struct {
	UserID    string
	Email     string
	Tier      store.Tier
	SessionID string // set only when the caller authenticated with a session
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}

// identityFromUser builds an Identity, refusing users that may not authenticate.
func identityFromUser(u *store.User) (*Identity, error) {
	if !u.EmailVerified {
		return nil, ErrInvalidCredential
	}
	if !u.Tier.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, store.ErrUnknownTier)
	}
	return &Identity{UserID: u.ID, Email: u.Email, Tier: u.Tier}, nil
}
