// ABOUTME: Tests for the session authority
// ABOUTME: Uses a controllable clock to pin expiry boundaries

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lautrek/tollgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSessionAuthority(t *testing.T) (*SessionAuthority, *store.MockStore, *fakeClock) {
	t.Helper()
	s := store.NewMockStore()
	seedUser(t, s, "alice", "lt_alice", true, store.TierFree)
	clock := &fakeClock{t: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)}
	return NewSessionAuthority(s).WithClock(clock.Now), s, clock
}

func TestSessionAuthority_Create(t *testing.T) {
	a, s, clock := newTestSessionAuthority(t)
	ctx := context.Background()

	id, token, err := a.Create(ctx, "alice", false, SessionMeta{IPAddress: "192.0.2.1", DeviceName: "phone"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, token, 43)
	assert.NotEqual(t, id, token)

	session, err := s.GetSessionByTokenHash(ctx, Fingerprint(token))
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, clock.t.Add(24*time.Hour), session.ExpiresAt)
	assert.Equal(t, "192.0.2.1", session.IPAddress)
	assert.Equal(t, "phone", session.DeviceName)
	assert.NotEqual(t, token, session.TokenHash)
}

func TestSessionAuthority_Create_RememberMe(t *testing.T) {
	a, s, clock := newTestSessionAuthority(t)
	ctx := context.Background()

	_, token, err := a.Create(ctx, "alice", true, SessionMeta{})
	require.NoError(t, err)

	session, err := s.GetSessionByTokenHash(ctx, Fingerprint(token))
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(30*24*time.Hour), session.ExpiresAt)
	assert.True(t, session.RememberMe)
}

func TestSessionAuthority_Validate_TouchesEveryTime(t *testing.T) {
	a, s, clock := newTestSessionAuthority(t)
	ctx := context.Background()

	_, token, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)
	created := clock.t

	clock.Advance(time.Minute)
	first, err := a.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.Add(time.Minute), first.LastActiveAt)

	clock.Advance(time.Minute)
	second, err := a.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.Add(2*time.Minute), second.LastActiveAt)

	stored, err := s.GetSessionByTokenHash(ctx, Fingerprint(token))
	require.NoError(t, err)
	assert.Equal(t, created.Add(2*time.Minute), stored.LastActiveAt)
	assert.Equal(t, created.Add(24*time.Hour), stored.ExpiresAt, "expiry is never extended")
}

func TestSessionAuthority_Validate_ExpiresAtBoundary(t *testing.T) {
	a, s, clock := newTestSessionAuthority(t)
	ctx := context.Background()

	_, token, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)

	clock.Advance(24*time.Hour - time.Nanosecond)
	_, err = a.Validate(ctx, token)
	require.NoError(t, err)

	clock.Advance(time.Nanosecond)
	_, err = a.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = s.GetSessionByTokenHash(ctx, Fingerprint(token))
	assert.ErrorIs(t, err, store.ErrNotFound, "expired session is deleted on access")
}

func TestSessionAuthority_Validate_Invalid(t *testing.T) {
	a, _, _ := newTestSessionAuthority(t)
	ctx := context.Background()

	_, err := a.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = a.Validate(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSessionAuthority_Validate_StoreFault(t *testing.T) {
	a, s, _ := newTestSessionAuthority(t)
	s.Err = errors.New("disk I/O error")

	_, err := a.Validate(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestSessionAuthority_Identify(t *testing.T) {
	a, s, _ := newTestSessionAuthority(t)
	ctx := context.Background()

	sessionID, token, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)

	id, err := a.Identify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, store.TierFree, id.Tier)
	assert.Equal(t, sessionID, id.SessionID)

	seedUser(t, s, "bob", "lt_bob", false, store.TierFree)
	_, bobToken, err := a.Create(ctx, "bob", false, SessionMeta{})
	require.NoError(t, err)
	_, err = a.Identify(ctx, bobToken)
	assert.ErrorIs(t, err, ErrInvalidCredential, "unverified users never authenticate")
}

func TestSessionAuthority_Delete(t *testing.T) {
	a, _, _ := newTestSessionAuthority(t)
	ctx := context.Background()

	id, token, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)

	deleted, err := a.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = a.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = a.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSessionAuthority_DeleteAllForUser(t *testing.T) {
	a, _, _ := newTestSessionAuthority(t)
	ctx := context.Background()

	_, t1, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)
	_, t2, err := a.Create(ctx, "alice", true, SessionMeta{})
	require.NoError(t, err)

	n, err := a.DeleteAllForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, tok := range []string{t1, t2} {
		_, err := a.Validate(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	}
}

func TestSessionAuthority_PurgeExpired(t *testing.T) {
	a, _, clock := newTestSessionAuthority(t)
	ctx := context.Background()

	_, _, err := a.Create(ctx, "alice", false, SessionMeta{})
	require.NoError(t, err)
	_, keep, err := a.Create(ctx, "alice", true, SessionMeta{})
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	n, err := a.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = a.Validate(ctx, keep)
	assert.NoError(t, err)
}
