// ABOUTME: Shared fixtures for auth package tests
// ABOUTME: Seeds users into the in-memory mock store

package auth

import (
	"context"
	"testing"

	"github.com/lautrek/tollgate/internal/store"
	"github.com/stretchr/testify/require"
)

// seedUser stores a user whose API key is key.
func seedUser(t *testing.T, s *store.MockStore, id, key string, verified bool, tier store.Tier) *store.User {
	t.Helper()
	u := &store.User{
		ID:            id,
		Email:         id + "@example.com",
		APIKeyHash:    Fingerprint(key),
		Tier:          tier,
		EmailVerified: verified,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}
