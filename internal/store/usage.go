// ABOUTME: SQLite implementation for monthly usage buckets
// ABOUTME: Increments are single-statement upserts so concurrent callers never duplicate a bucket

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAmount is returned when an increment amount is not positive.
var ErrInvalidAmount = errors.New("usage amount must be positive")

// GetUsageRecord retrieves the bucket for a user and month.
// Returns ErrNotFound if no operation has been recorded yet.
func (s *SQLiteStore) GetUsageRecord(ctx context.Context, userID, yearMonth string) (*UsageRecord, error) {
	query := `
		SELECT user_id, year_month, operation_count, last_operation_at
		FROM usage
		WHERE user_id = ? AND year_month = ?
	`

	record, err := scanUsageRecord(s.db.QueryRowContext(ctx, query, userID, yearMonth))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// IncrementUsage adds amount to the bucket, creating it on first use, and
// returns the new count. The upsert is one statement, so two first
// operations of a month cannot both insert.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, userID, yearMonth string, amount int64, at time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	query := `
		INSERT INTO usage (user_id, year_month, operation_count, last_operation_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, year_month) DO UPDATE SET
			operation_count = usage.operation_count + excluded.operation_count,
			last_operation_at = excluded.last_operation_at
		RETURNING operation_count
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, userID, yearMonth, amount, formatTime(at)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}

	s.logger.Debug("incremented usage", "user_id", userID, "period", yearMonth, "count", count)
	return count, nil
}

// ConsumeUsage admits one operation if the bucket is below limit.
//
// The limit check lives in the upsert itself: the INSERT branch only fires
// when the limit allows at least one operation and the DO UPDATE branch only
// fires while operation_count < limit. When neither fires no row is returned
// and nothing was written.
func (s *SQLiteStore) ConsumeUsage(ctx context.Context, userID, yearMonth string, limit int64, at time.Time) (int64, bool, error) {
	query := `
		INSERT INTO usage (user_id, year_month, operation_count, last_operation_at)
		SELECT ?, ?, 1, ? WHERE ? < 0 OR ? > 0
		ON CONFLICT(user_id, year_month) DO UPDATE SET
			operation_count = usage.operation_count + 1,
			last_operation_at = excluded.last_operation_at
		WHERE ? < 0 OR usage.operation_count < ?
		RETURNING operation_count
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query,
		userID, yearMonth, formatTime(at), limit, limit,
		limit, limit,
	).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("consuming usage: %w", err)
	}

	// Rejected: report the count that caused it.
	record, err := s.GetUsageRecord(ctx, userID, yearMonth)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return record.OperationCount, false, nil
}

// DeleteUsage removes a bucket. Reports whether it existed.
func (s *SQLiteStore) DeleteUsage(ctx context.Context, userID, yearMonth string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM usage WHERE user_id = ? AND year_month = ?", userID, yearMonth)
	if err != nil {
		return false, fmt.Errorf("deleting usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Info("reset usage", "user_id", userID, "period", yearMonth)
	}
	return rowsAffected > 0, nil
}

// ListUsage returns a user's buckets, most recent month first.
func (s *SQLiteStore) ListUsage(ctx context.Context, userID string, limit int) ([]*UsageRecord, error) {
	if limit <= 0 {
		limit = 12
	}

	query := `
		SELECT user_id, year_month, operation_count, last_operation_at
		FROM usage
		WHERE user_id = ?
		ORDER BY year_month DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying usage history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*UsageRecord{}
	for rows.Next() {
		record, err := scanUsageRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage rows: %w", err)
	}

	return records, nil
}

// scanUsageRecord scans a single usage row.
func scanUsageRecord(scanner interface{ Scan(dest ...any) error }) (*UsageRecord, error) {
	var record UsageRecord
	var lastOperationAt sql.NullString

	err := scanner.Scan(
		&record.UserID,
		&record.YearMonth,
		&record.OperationCount,
		&lastOperationAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning usage row: %w", err)
	}

	if record.LastOperationAt, err = parseNullTime(lastOperationAt); err != nil {
		return nil, fmt.Errorf("parsing last_operation_at: %w", err)
	}

	return &record, nil
}
