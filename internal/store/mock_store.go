// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	users    map[string]*User        // keyed by user ID
	sessions map[string]*Session     // keyed by session ID
	usage    map[string]*UsageRecord // keyed by "userID:yearMonth"
	audit    []AuditEntry

	// Err, when set, is returned by every method. Lets callers exercise
	// store-unavailable paths.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		usage:    make(map[string]*UsageRecord),
	}
}

func usageKey(userID, yearMonth string) string {
	return userID + ":" + yearMonth
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if !user.Tier.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTier, user.Tier)
	}
	user.Email = NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailExists
		}
		if u.APIKeyHash == user.APIKeyHash {
			return ErrAPIKeyExists
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	return m.findUser(func(u *User) bool { return u.ID == id })
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	return m.findUser(func(u *User) bool { return u.Email == email })
}

// GetUserByAPIKeyHash retrieves a user by API key fingerprint.
func (m *MockStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, error) {
	return m.findUser(func(u *User) bool { return u.APIKeyHash == hash })
}

func (m *MockStore) findUser(match func(*User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, u := range m.users {
		if match(u) {
			// Return a copy
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateAPIKeyHash replaces a user's API key fingerprint.
func (m *MockStore) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	return m.updateUser(id, func(u *User) error {
		for _, other := range m.users {
			if other.ID != id && other.APIKeyHash == hash {
				return ErrAPIKeyExists
			}
		}
		u.APIKeyHash = hash
		return nil
	})
}

// UpdatePasswordHash sets a user's password hash.
func (m *MockStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return m.updateUser(id, func(u *User) error {
		u.PasswordHash = hash
		return nil
	})
}

// SetEmailVerified marks a user's email as verified.
func (m *MockStore) SetEmailVerified(ctx context.Context, id string) error {
	return m.updateUser(id, func(u *User) error {
		u.EmailVerified = true
		return nil
	})
}

// UpdateTier changes a user's tier.
func (m *MockStore) UpdateTier(ctx context.Context, id string, tier Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return m.updateUser(id, func(u *User) error {
		u.Tier = tier
		return nil
	})
}

// UpdateSubscriptionStatus records the billing provider's status.
func (m *MockStore) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return m.updateUser(id, func(u *User) error {
		u.SubscriptionStatus = status
		return nil
	})
}

// TouchUser records the last sign-in time.
func (m *MockStore) TouchUser(ctx context.Context, id string, at time.Time) error {
	return m.updateUser(id, func(u *User) error {
		t := at.UTC()
		u.LastActiveAt = &t
		return nil
	})
}

func (m *MockStore) updateUser(id string, apply func(*User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := apply(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.users[session.UserID]; !ok {
		return fmt.Errorf("inserting session: user %s does not exist", session.UserID)
	}
	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetSessionByTokenHash retrieves a session by token fingerprint.
func (m *MockStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			result := *s
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// TouchSession updates a session's last activity time.
func (m *MockStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastActiveAt = at.UTC()
	return nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}

	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

// DeleteUserSessions removes every session of a user.
func (m *MockStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return m.deleteSessionsWhere(func(s *Session) bool { return s.UserID == userID })
}

// DeleteExpiredSessions removes sessions with expires_at <= now.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteSessionsWhere(func(s *Session) bool { return !now.Before(s.ExpiresAt) })
}

func (m *MockStore) deleteSessionsWhere(match func(*Session) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}

	var n int64
	for id, s := range m.sessions {
		if match(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// GetUsageRecord retrieves a usage bucket.
func (m *MockStore) GetUsageRecord(ctx context.Context, userID, yearMonth string) (*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	r, ok := m.usage[usageKey(userID, yearMonth)]
	if !ok {
		return nil, ErrNotFound
	}
	result := *r
	return &result, nil
}

// IncrementUsage adds amount to a bucket.
func (m *MockStore) IncrementUsage(ctx context.Context, userID, yearMonth string, amount int64, at time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}

	r := m.bucketLocked(userID, yearMonth)
	r.OperationCount += amount
	t := at.UTC()
	r.LastOperationAt = &t
	return r.OperationCount, nil
}

// ConsumeUsage admits one operation if the bucket is below limit.
func (m *MockStore) ConsumeUsage(ctx context.Context, userID, yearMonth string, limit int64, at time.Time) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, false, m.Err
	}

	var current int64
	if r, ok := m.usage[usageKey(userID, yearMonth)]; ok {
		current = r.OperationCount
	}
	if limit >= 0 && current >= limit {
		return current, false, nil
	}

	r := m.bucketLocked(userID, yearMonth)
	r.OperationCount++
	t := at.UTC()
	r.LastOperationAt = &t
	return r.OperationCount, true, nil
}

// bucketLocked returns the bucket, creating it at zero. Caller holds mu.
func (m *MockStore) bucketLocked(userID, yearMonth string) *UsageRecord {
	key := usageKey(userID, yearMonth)
	r, ok := m.usage[key]
	if !ok {
		r = &UsageRecord{UserID: userID, YearMonth: yearMonth}
		m.usage[key] = r
	}
	return r
}

// DeleteUsage removes a bucket.
func (m *MockStore) DeleteUsage(ctx context.Context, userID, yearMonth string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}

	key := usageKey(userID, yearMonth)
	_, ok := m.usage[key]
	delete(m.usage, key)
	return ok, nil
}

// ListUsage returns a user's buckets, newest month first.
func (m *MockStore) ListUsage(ctx context.Context, userID string, limit int) ([]*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	if limit <= 0 {
		limit = 12
	}

	records := []*UsageRecord{}
	for _, r := range m.usage {
		if r.UserID == userID {
			result := *r
			records = append(records, &result)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].YearMonth > records[j].YearMonth
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// AppendAuditLog appends an audit entry.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	entries := []AuditEntry{}
	for _, e := range m.audit {
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	limit := normalizeAuditLimit(f.Limit)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
