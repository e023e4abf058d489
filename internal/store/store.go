// ABOUTME: Store interfaces and data types for tollgate persistence
// ABOUTME: Defines User, Session, UsageRecord and the per-concern store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user whose email is already registered
var ErrEmailExists = errors.New("email already registered")

// ErrAPIKeyExists is returned when an api_key_hash collides with another user's
var ErrAPIKeyExists = errors.New("api key hash already in use")

// User is an account that can authenticate with an API key or a password.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string // argon2id PHC string, empty if API-key only
	APIKeyHash         string // sha256 hex of the raw key, never the key itself
	Tier               Tier
	EmailVerified      bool
	SubscriptionStatus string // opaque, written by the billing webhook
	IsAdmin            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastActiveAt       *time.Time
}

// Session is a server-side browser session. The raw token is never stored.
type Session struct {
	ID           string
	UserID       string
	TokenHash    string
	CreatedAt    time.Time
	ExpiresAt    time.Time // fixed at creation
	LastActiveAt time.Time
	IPAddress    string
	DeviceName   string
	RememberMe   bool
}

// UsageRecord is the operation counter for one user in one calendar month.
type UsageRecord struct {
	UserID          string
	YearMonth       string // "2006-01"
	OperationCount  int64
	LastOperationAt *time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, error)
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetEmailVerified(ctx context.Context, id string) error
	UpdateTier(ctx context.Context, id string, tier Tier) error
	UpdateSubscriptionStatus(ctx context.Context, id, status string) error
	TouchUser(ctx context.Context, id string, at time.Time) error
}

// SessionStore persists browser sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// UsageStore persists monthly usage buckets.
//
// IncrementUsage and ConsumeUsage must be atomic with respect to concurrent
// callers for the same (userID, yearMonth): exactly one bucket row exists and
// no increment is lost.
type UsageStore interface {
	GetUsageRecord(ctx context.Context, userID, yearMonth string) (*UsageRecord, error)
	IncrementUsage(ctx context.Context, userID, yearMonth string, amount int64, at time.Time) (int64, error)
	// ConsumeUsage adds one operation only if the current count is below limit
	// (limit < 0 means unbounded). It returns the count after the call and
	// whether the operation was admitted.
	ConsumeUsage(ctx context.Context, userID, yearMonth string, limit int64, at time.Time) (int64, bool, error)
	DeleteUsage(ctx context.Context, userID, yearMonth string) (bool, error)
	ListUsage(ctx context.Context, userID string, limit int) ([]*UsageRecord, error)
}

// AuditStore is the append-only audit side channel.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// Store combines every persistence concern behind one handle.
type Store interface {
	UserStore
	SessionStore
	UsageStore
	AuditStore

	// Close releases any resources held by the store
	Close() error
}
