// ABOUTME: Unit tests for identity context helpers
// ABOUTME: Tests propagation and the verified/tier checks applied to users

package auth

import (
	"context"
	"testing"

	"github.com/lautrek/tollgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.Panics(t, func() { MustFromContext(ctx) })

	id := &Identity{UserID: "u1", Email: "u1@example.com", Tier: store.TierPro}
	ctx = WithIdentity(ctx, id)
	assert.Same(t, id, FromContext(ctx))
	assert.Same(t, id, MustFromContext(ctx))
}

func TestIdentityFromUser(t *testing.T) {
	id, err := identityFromUser(&store.User{ID: "u", Email: "u@x.io", Tier: store.TierEnterprise, EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u", Email: "u@x.io", Tier: store.TierEnterprise}, id)

	_, err = identityFromUser(&store.User{ID: "u", Tier: store.TierFree})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = identityFromUser(&store.User{ID: "u", Tier: "gold", EmailVerified: true})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.ErrorIs(t, err, store.ErrUnknownTier)
}
