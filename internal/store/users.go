// ABOUTME: User account persistence for the SQLite store
// ABOUTME: Lookups by id, email and API key fingerprint plus field-level updates

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = `
	id, email, password_hash, api_key_hash, tier, email_verified,
	subscription_status, is_admin, created_at, updated_at, last_active_at
`

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user. Returns ErrEmailExists or ErrAPIKeyExists on
// uniqueness conflicts.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if !user.Tier.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTier, user.Tier)
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.Email = NormalizeEmail(user.Email)

	query := `
		INSERT INTO users (
			id, email, password_hash, api_key_hash, tier, email_verified,
			subscription_status, is_admin, created_at, updated_at, last_active_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullString(user.PasswordHash),
		user.APIKeyHash,
		string(user.Tier),
		boolToInt(user.EmailVerified),
		nullString(user.SubscriptionStatus),
		boolToInt(user.IsAdmin),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullTime(user.LastActiveAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "users.email") {
				return ErrEmailExists
			}
			if strings.Contains(err.Error(), "users.api_key_hash") {
				return ErrAPIKeyExists
			}
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "id", user.ID, "tier", user.Tier)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by (normalized) email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
	return scanUser(row)
}

// GetUserByAPIKeyHash retrieves the user owning an API key fingerprint.
func (s *SQLiteStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE api_key_hash = ?`, hash)
	return scanUser(row)
}

// UpdateAPIKeyHash replaces a user's API key fingerprint, invalidating the old key.
func (s *SQLiteStore) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	err := s.updateUserField(ctx, id, "api_key_hash", hash)
	if isUniqueConstraintError(err) {
		return ErrAPIKeyExists
	}
	return err
}

// UpdatePasswordHash sets a user's password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateUserField(ctx, id, "password_hash", nullString(hash))
}

// SetEmailVerified marks a user's email as verified.
func (s *SQLiteStore) SetEmailVerified(ctx context.Context, id string) error {
	return s.updateUserField(ctx, id, "email_verified", 1)
}

// UpdateTier changes a user's subscription tier.
func (s *SQLiteStore) UpdateTier(ctx context.Context, id string, tier Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return s.updateUserField(ctx, id, "tier", string(tier))
}

// UpdateSubscriptionStatus records the opaque status reported by the billing provider.
func (s *SQLiteStore) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return s.updateUserField(ctx, id, "subscription_status", nullString(status))
}

// TouchUser records the last time a user signed in.
func (s *SQLiteStore) TouchUser(ctx context.Context, id string, at time.Time) error {
	return s.updateUserField(ctx, id, "last_active_at", formatTime(at))
}

// updateUserField sets one column and bumps updated_at. column is never user input.
func (s *SQLiteStore) updateUserField(ctx context.Context, id, column string, value any) error {
	query := `UPDATE users SET ` + column + ` = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, value, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated user", "id", id, "field", column)
	return nil
}

// scanUser scans a single user row.
func scanUser(row *sql.Row) (*User, error) {
	var user User
	var passwordHash, subscriptionStatus, lastActiveAt sql.NullString
	var tier, createdAtStr, updatedAtStr string
	var emailVerified, isAdmin int

	err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.APIKeyHash,
		&tier,
		&emailVerified,
		&subscriptionStatus,
		&isAdmin,
		&createdAtStr,
		&updatedAtStr,
		&lastActiveAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.SubscriptionStatus = subscriptionStatus.String
	user.Tier = Tier(tier)
	user.EmailVerified = emailVerified != 0
	user.IsAdmin = isAdmin != 0

	if user.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if user.LastActiveAt, err = parseNullTime(lastActiveAt); err != nil {
		return nil, fmt.Errorf("parsing last_active_at: %w", err)
	}

	return &user, nil
}
