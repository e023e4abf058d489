// ABOUTME: Tests for SQLite store setup, schema and migrations
// ABOUTME: Also hosts the shared test helpers for the store package

package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// createTestUser inserts a free-tier user with a unique key fingerprint.
func createTestUser(t *testing.T, s Store, id string) *User {
	t.Helper()
	user := &User{
		ID:         id,
		Email:      id + "@example.com",
		APIKeyHash: fmt.Sprintf("hash-%s", id),
		Tier:       TierFree,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func TestNewSQLiteStore_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "tollgate.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, dbPath)
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	createTestUser(t, s, "mem-user")

	// A single pinned connection means the second query sees the first write.
	got, err := s.GetUser(context.Background(), "mem-user")
	require.NoError(t, err)
	assert.Equal(t, "mem-user@example.com", got.Email)
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	createTestUser(t, s1, "persisted")
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetUser(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, TierFree, got.Tier)
}

func TestRunMigrations_FreshSchemaNeedsNone(t *testing.T) {
	s := setupTestStore(t)

	n, err := s.runMigrations()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunMigrations_AddsColumns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")

	// Tables as written by a release before sessions carried a device name.
	old, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = old.Exec(`
		CREATE TABLE users (
			id                  TEXT PRIMARY KEY,
			email               TEXT UNIQUE NOT NULL,
			password_hash       TEXT,
			api_key_hash        TEXT UNIQUE NOT NULL,
			tier                TEXT NOT NULL DEFAULT 'free',
			email_verified      INTEGER NOT NULL DEFAULT 0,
			subscription_status TEXT,
			is_admin            INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL
		);
		CREATE TABLE sessions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash     TEXT UNIQUE NOT NULL,
			created_at     TEXT NOT NULL,
			expires_at     TEXT NOT NULL,
			last_active_at TEXT,
			ip_address     TEXT,
			is_remember_me INTEGER NOT NULL DEFAULT 0
		);
	`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for _, tc := range []struct{ table, column string }{
		{"users", "last_active_at"},
		{"sessions", "device_name"},
	} {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, tc.table, tc.column).Scan(&exists)
		require.NoError(t, err, "%s.%s should exist", tc.table, tc.column)
	}

	// Running again must not fail on the now-present columns.
	n, err := s.runMigrations()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.CreateSession(ctx, &Session{
		ID:        "orphan",
		UserID:    "no-such-user",
		TokenHash: "tok",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
}

func TestFormatTime_SortsAsText(t *testing.T) {
	early := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	late := early.Add(500 * time.Millisecond)

	assert.Less(t, formatTime(early), formatTime(late))
	assert.Len(t, formatTime(early), len(formatTime(late)))

	parsed, err := parseTime(formatTime(late))
	require.NoError(t, err)
	assert.True(t, late.Equal(parsed))
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t,
		"/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		buildDSN("/tmp/x.db", false))
	assert.Equal(t,
		":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		buildDSN(":memory:", true))
}
