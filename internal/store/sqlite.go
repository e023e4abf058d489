// ABOUTME: SQLite implementation of the Store interfaces using modernc.org/sqlite
// ABOUTME: Opens the database with per-connection pragmas and creates the schema

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// busyTimeoutMillis bounds how long a writer waits for the database lock.
const busyTimeoutMillis = 5000

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. The special path ":memory:"
// opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each in-memory connection is a separate database, so pin the pool to one.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if _, err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// buildDSN attaches pragmas as query parameters so the driver applies them
// to every pooled connection, not just the first one.
func buildDSN(path string, inMemory bool) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis),
	}
	if !inMemory {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			email               TEXT UNIQUE NOT NULL,
			password_hash       TEXT,
			api_key_hash        TEXT UNIQUE NOT NULL,
			tier                TEXT NOT NULL DEFAULT 'free',
			email_verified      INTEGER NOT NULL DEFAULT 0,
			subscription_status TEXT,
			is_admin            INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			last_active_at      TEXT,

			CHECK (tier IN ('free', 'pro', 'enterprise'))
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_api_key_hash ON users(api_key_hash);

		CREATE TABLE IF NOT EXISTS sessions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash     TEXT UNIQUE NOT NULL,
			created_at     TEXT NOT NULL,
			expires_at     TEXT NOT NULL,
			last_active_at TEXT,
			ip_address     TEXT,
			device_name    TEXT,
			is_remember_me INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_token_hash ON sessions(token_hash);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

		CREATE TABLE IF NOT EXISTS usage (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			year_month        TEXT NOT NULL,
			operation_count   INTEGER NOT NULL DEFAULT 0,
			last_operation_at TEXT,

			UNIQUE (user_id, year_month),
			CHECK (operation_count >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_usage_user_month ON usage(user_id, year_month);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id      TEXT PRIMARY KEY,
			ts            TEXT NOT NULL,
			user_id       TEXT,
			action        TEXT NOT NULL,
			resource_type TEXT,
			resource_id   TEXT,
			detail_json   TEXT,
			ip_address    TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations adds columns that databases created by older releases lack
// and returns how many it applied. A fresh schema needs none.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() (int, error) {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "users",
			column: "last_active_at",
			apply:  `ALTER TABLE users ADD COLUMN last_active_at TEXT`,
		},
		{
			table:  "sessions",
			column: "device_name",
			apply:  `ALTER TABLE sessions ADD COLUMN device_name TEXT`,
		},
	}

	applied := 0
	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return applied, fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
		applied++
	}

	return applied, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed: table.column" in the error message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullString returns nil for empty strings so optional columns store NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatTime renders t in UTC using the fixed-width storage layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullTime returns nil for a nil time pointer.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseNullTime parses an optional stored timestamp.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// boolToInt converts a bool to the 0/1 integer SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
