// ABOUTME: Server-side browser sessions keyed by a random bearer token
// ABOUTME: Expired sessions are deleted lazily when presented

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lautrek/tollgate/internal/store"
)

const (
	// SessionTTL is the lifetime of a normal session.
	SessionTTL = 24 * time.Hour

	// RememberMeTTL is the lifetime of a "remember me" session.
	RememberMeTTL = 30 * 24 * time.Hour

	sessionTokenBytes = 32
)

// SessionStore is the subset of the store the session authority needs.
type SessionStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	CreateSession(ctx context.Context, session *store.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*store.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionMeta is optional context recorded with a new session.
type SessionMeta struct {
	IPAddress  string
	DeviceName string
}

// SessionAuthority issues, validates and revokes sessions.
type SessionAuthority struct {
	store  SessionStore
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionAuthority creates a session authority using the wall clock.
func NewSessionAuthority(s SessionStore) *SessionAuthority {
	return &SessionAuthority{
		store:  s,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "sessions"),
	}
}

// WithClock replaces the clock. Used by tests.
func (a *SessionAuthority) WithClock(now func() time.Time) *SessionAuthority {
	a.now = now
	return a
}

// Create starts a session for userID and returns its public id and the raw
// token. The token is not retrievable again.
func (a *SessionAuthority) Create(ctx context.Context, userID string, remember bool, meta SessionMeta) (string, string, error) {
	token, err := randomToken(sessionTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating session token: %w", err)
	}

	ttl := SessionTTL
	if remember {
		ttl = RememberMeTTL
	}

	now := a.now()
	session := &store.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		TokenHash:    Fingerprint(token),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastActiveAt: now,
		IPAddress:    meta.IPAddress,
		DeviceName:   meta.DeviceName,
		RememberMe:   remember,
	}
	if err := a.store.CreateSession(ctx, session); err != nil {
		return "", "", fmt.Errorf("creating session: %w", err)
	}

	a.logger.Info("session created", "session_id", session.ID, "user_id", userID, "remember_me", remember)
	return session.ID, token, nil
}

// Validate resolves a raw token to its session and records the activity.
// A session is expired once now reaches expires_at; expired sessions are
// deleted and reported as ErrInvalidCredential.
func (a *SessionAuthority) Validate(ctx context.Context, token string) (*store.Session, error) {
	if token == "" {
		return nil, ErrInvalidCredential
	}

	session, err := a.store.GetSessionByTokenHash(ctx, Fingerprint(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	now := a.now()
	if !now.Before(session.ExpiresAt) {
		if _, err := a.store.DeleteSession(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("deleting expired session: %w", err)
		}
		a.logger.Debug("expired session removed", "session_id", session.ID)
		return nil, ErrInvalidCredential
	}

	if err := a.store.TouchSession(ctx, session.ID, now); err != nil {
		// Deleted between the read and the touch.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("touching session: %w", err)
	}
	session.LastActiveAt = now

	return session, nil
}

// Identify validates a session token and resolves the owning user.
func (a *SessionAuthority) Identify(ctx context.Context, token string) (*Identity, error) {
	session, err := a.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := a.store.GetUser(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session user: %w", err)
	}

	id, err := identityFromUser(user)
	if err != nil {
		return nil, err
	}
	id.SessionID = session.ID
	return id, nil
}

// Delete ends a session. Reports whether it existed.
func (a *SessionAuthority) Delete(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := a.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return deleted, nil
}

// DeleteAllForUser ends every session of a user.
func (a *SessionAuthority) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := a.store.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	a.logger.Info("sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// PurgeExpired deletes every session that has reached its expiry.
func (a *SessionAuthority) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := a.store.DeleteExpiredSessions(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return n, nil
}
