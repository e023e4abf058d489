// ABOUTME: Tests for monthly usage buckets in the SQLite store
// ABOUTME: Covers increments, limit-guarded consumption, concurrency and history

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_IncrementUsage_CreatesBucket(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "alice")

	_, err := s.GetUsageRecord(ctx, "alice", "2025-03")
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	count, err := s.IncrementUsage(ctx, "alice", "2025-03", 1, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.IncrementUsage(ctx, "alice", "2025-03", 4, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	rec, err := s.GetUsageRecord(ctx, "alice", "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.OperationCount)
	require.NotNil(t, rec.LastOperationAt)
	assert.True(t, at.Add(time.Minute).Equal(*rec.LastOperationAt))
}

func TestStore_IncrementUsage_RejectsNonPositive(t *testing.T) {
	s := setupTestStore(t)
	createTestUser(t, s, "bob")

	_, err := s.IncrementUsage(context.Background(), "bob", "2025-03", 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestStore_IncrementUsage_Concurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "carol")

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementUsage(ctx, "carol", "2025-04", 1, time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM usage WHERE user_id = ?`, "carol").Scan(&rows))
	assert.Equal(t, 1, rows)

	rec, err := s.GetUsageRecord(ctx, "carol", "2025-04")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), rec.OperationCount)
}

func TestStore_ConsumeUsage_StopsAtLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "dave")

	for i := int64(1); i <= 3; i++ {
		count, ok, err := s.ConsumeUsage(ctx, "dave", "2025-05", 3, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, count)
	}

	count, ok, err := s.ConsumeUsage(ctx, "dave", "2025-05", 3, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), count)

	rec, err := s.GetUsageRecord(ctx, "dave", "2025-05")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.OperationCount, "rejected call must not write")
}

func TestStore_ConsumeUsage_ZeroLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "erin")

	count, ok, err := s.ConsumeUsage(ctx, "erin", "2025-05", 0, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), count)

	_, err = s.GetUsageRecord(ctx, "erin", "2025-05")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConsumeUsage_Unlimited(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "frank")

	_, err := s.IncrementUsage(ctx, "frank", "2025-05", 1_000_000, time.Now())
	require.NoError(t, err)

	count, ok, err := s.ConsumeUsage(ctx, "frank", "2025-05", -1, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1_000_001), count)
}

func TestStore_ConsumeUsage_ConcurrentNeverOvershoots(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "gina")

	const (
		workers = 30
		limit   = 10
	)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ConsumeUsage(ctx, "gina", "2025-06", limit, time.Now())
			if assert.NoError(t, err) && ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
	rec, err := s.GetUsageRecord(ctx, "gina", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, int64(limit), rec.OperationCount)
}

func TestStore_DeleteUsage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "henry")

	_, err := s.IncrementUsage(ctx, "henry", "2025-07", 7, time.Now())
	require.NoError(t, err)

	deleted, err := s.DeleteUsage(ctx, "henry", "2025-07")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteUsage(ctx, "henry", "2025-07")
	require.NoError(t, err)
	assert.False(t, deleted)

	count, err := s.IncrementUsage(ctx, "henry", "2025-07", 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_ListUsage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ivy")
	createTestUser(t, s, "jack")

	for _, month := range []string{"2025-01", "2025-03", "2024-12", "2025-02"} {
		_, err := s.IncrementUsage(ctx, "ivy", month, 2, time.Now())
		require.NoError(t, err)
	}
	_, err := s.IncrementUsage(ctx, "jack", "2025-03", 1, time.Now())
	require.NoError(t, err)

	records, err := s.ListUsage(ctx, "ivy", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2025-03", records[0].YearMonth)
	assert.Equal(t, "2025-02", records[1].YearMonth)
	assert.Equal(t, "2025-01", records[2].YearMonth)

	records, err = s.ListUsage(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
