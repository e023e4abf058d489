// ABOUTME: Browser session persistence for the SQLite store
// ABOUTME: Sessions are looked up by token fingerprint and deleted on expiry or logout

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession inserts a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, token_hash, created_at, expires_at, last_active_at,
			ip_address, device_name, is_remember_me
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		formatTime(session.CreatedAt),
		formatTime(session.ExpiresAt),
		formatTime(session.LastActiveAt),
		nullString(session.IPAddress),
		nullString(session.DeviceName),
		boolToInt(session.RememberMe),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "user_id", session.UserID, "remember_me", session.RememberMe)
	return nil
}

// GetSessionByTokenHash retrieves a session by its token fingerprint.
// Expired sessions are returned as-is; the caller decides what expiry means.
func (s *SQLiteStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, last_active_at,
		       ip_address, device_name, is_remember_me
		FROM sessions
		WHERE token_hash = ?
	`

	var session Session
	var createdAtStr, expiresAtStr string
	var lastActiveAt, ipAddress, deviceName sql.NullString
	var rememberMe int

	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&createdAtStr,
		&expiresAtStr,
		&lastActiveAt,
		&ipAddress,
		&deviceName,
		&rememberMe,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.IPAddress = ipAddress.String
	session.DeviceName = deviceName.String
	session.RememberMe = rememberMe != 0

	if session.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if session.ExpiresAt, err = parseTime(expiresAtStr); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	lastActive, err := parseNullTime(lastActiveAt)
	if err != nil {
		return nil, fmt.Errorf("parsing last_active_at: %w", err)
	}
	if lastActive != nil {
		session.LastActiveAt = *lastActive
	}

	return &session, nil
}

// TouchSession records activity on a session. expires_at is never changed.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_active_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Reports whether a row was removed.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteUserSessions removes every session belonging to a user.
func (s *SQLiteStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deleted user sessions", "user_id", userID, "count", rowsAffected)
	}
	return rowsAffected, nil
}

// DeleteExpiredSessions removes all sessions with expires_at <= now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return rowsAffected, nil
}
