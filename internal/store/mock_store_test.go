// ABOUTME: Tests for MockStore
// ABOUTME: Checks the in-memory store keeps the SQLite store's semantics

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_Users(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	createTestUser(t, m, "alice")

	got, err := m.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ID)

	err = m.CreateUser(ctx, &User{ID: "x", Email: "alice@example.com", APIKeyHash: "new", Tier: TierFree})
	assert.ErrorIs(t, err, ErrEmailExists)

	err = m.CreateUser(ctx, &User{ID: "y", Email: "y@example.com", APIKeyHash: "hash-alice", Tier: TierFree})
	assert.ErrorIs(t, err, ErrAPIKeyExists)

	assert.ErrorIs(t, m.UpdateTier(ctx, "alice", Tier("gold")), ErrUnknownTier)
	require.NoError(t, m.UpdateTier(ctx, "alice", TierPro))

	got, err = m.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, TierPro, got.Tier)

	// Returned values are copies.
	got.Tier = TierEnterprise
	again, err := m.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, TierPro, again.Tier)
}

func TestMockStore_ConsumeUsage(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := m.ConsumeUsage(ctx, "u", "2025-01", 2, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
	}

	count, ok, err := m.ConsumeUsage(ctx, "u", "2025-01", 2, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), count)

	_, ok, err = m.ConsumeUsage(ctx, "u", "2025-02", 0, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = m.GetUsageRecord(ctx, "u", "2025-02")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_Sessions(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	createTestUser(t, m, "bob")

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateSession(ctx, &Session{ID: "s1", UserID: "bob", TokenHash: "t1", ExpiresAt: now}))
	require.NoError(t, m.CreateSession(ctx, &Session{ID: "s2", UserID: "bob", TokenHash: "t2", ExpiresAt: now.Add(time.Hour)}))

	n, err := m.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Error(t, m.CreateSession(ctx, &Session{ID: "s3", UserID: "ghost", TokenHash: "t3"}))
}

func TestMockStore_Err(t *testing.T) {
	m := NewMockStore()
	m.Err = errors.New("disk on fire")

	_, err := m.GetUser(context.Background(), "any")
	assert.EqualError(t, err, "disk on fire")

	_, _, err = m.ConsumeUsage(context.Background(), "any", "2025-01", 1, time.Now())
	assert.EqualError(t, err, "disk on fire")
}
