// Package store provides persistent storage for tollgate using SQLite.
//
// # Architecture
//
// The store is split into per-concern interfaces:
//
//   - UserStore: Accounts, API key fingerprints, tiers
//   - SessionStore: Server-side browser sessions
//   - UsageStore: Monthly operation counters
//   - AuditStore: Append-only audit log
//
// Store embeds all four. SQLiteStore implements Store in a single struct and
// MockStore provides the same semantics in memory for unit tests.
//
// # Data Models
//
//   - User: Account with tier, API key fingerprint and optional password hash
//   - Session: Browser session keyed by the fingerprint of its token
//   - UsageRecord: Operation count for one user in one "YYYY-MM" period
//   - AuditEntry: Who did what, from where
//
// Secrets never reach this package in raw form. API keys and session tokens
// are stored as SHA-256 hex fingerprints and passwords as argon2id PHC
// strings.
//
// # Concurrency
//
// Usage buckets are written with single-statement upserts guarded by
// UNIQUE(user_id, year_month). ConsumeUsage folds the limit check into the
// same statement, so concurrent requests cannot overshoot a quota.
//
// # SQLite Configuration
//
// Pragmas are passed in the DSN so every pooled connection gets them:
//
//	_pragma=foreign_keys(1)
//	_pragma=busy_timeout(5000)
//	_pragma=journal_mode(WAL)   (file databases only)
//
// Timestamps are stored as fixed-width RFC 3339 text in UTC so string
// comparison matches time order.
//
// # Testing
//
// Use NewMockStore() for unit tests of callers. Use NewSQLiteStore(":memory:")
// or a file under t.TempDir() for integration tests with real SQLite.
package store
