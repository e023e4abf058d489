// ABOUTME: Usage ledger counting operations per user per calendar month
// ABOUTME: Admission is decided by a single atomic consume against the store

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lautrek/tollgate/internal/store"
)

// PeriodLayout formats a time as its accounting period.
const PeriodLayout = "2006-01"

// ErrInvalidPeriod is returned for a period that is not "YYYY-MM".
var ErrInvalidPeriod = errors.New("invalid period")

// QuotaExceededError reports a rejected operation.
type QuotaExceededError struct {
	Limit  int64
	Used   int64
	Period string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d of %d operations used in %s", e.Used, e.Limit, e.Period)
}

// Usage is a snapshot of one user's current bucket.
type Usage struct {
	UserID    string `json:"user_id"`
	Period    string `json:"period"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`     // Unlimited for unbounded tiers
	Remaining int64  `json:"remaining"` // Unlimited for unbounded tiers
	IsLimited bool   `json:"is_limited"`
}

func newUsage(userID, period string, used, limit int64) *Usage {
	u := &Usage{UserID: userID, Period: period, Used: used, Limit: limit}
	if limit == Unlimited {
		u.Remaining = Unlimited
		return u
	}
	u.Remaining = max(0, limit-used)
	u.IsLimited = used >= limit
	return u
}

// Ledger meters operations against tier quotas.
type Ledger struct {
	store  store.UsageStore
	limits Limits
	now    func() time.Time
	logger *slog.Logger
}

// NewLedger creates a ledger. A nil limits table uses DefaultMonthlyLimits.
func NewLedger(s store.UsageStore, limits Limits) *Ledger {
	if limits == nil {
		limits = DefaultMonthlyLimits
	}
	return &Ledger{
		store:  s,
		limits: limits,
		now:    time.Now,
		logger: slog.Default().With("component", "ledger"),
	}
}

// WithClock replaces the clock. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Limits returns the quota table in effect.
func (l *Ledger) Limits() Limits {
	return l.limits
}

// Period returns the current accounting period.
func (l *Ledger) Period() string {
	return l.now().UTC().Format(PeriodLayout)
}

// GetUsage reads the current bucket. A missing bucket counts as zero.
func (l *Ledger) GetUsage(ctx context.Context, userID string, tier store.Tier) (*Usage, error) {
	limit, err := l.limits.For(tier)
	if err != nil {
		return nil, err
	}

	period := l.Period()
	used, err := l.used(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	return newUsage(userID, period, used, limit), nil
}

func (l *Ledger) used(ctx context.Context, userID, period string) (int64, error) {
	record, err := l.store.GetUsageRecord(ctx, userID, period)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	return record.OperationCount, nil
}

// Increment adds amount to the current bucket without consulting the quota
// and returns the new count.
func (l *Ledger) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	count, err := l.store.IncrementUsage(ctx, userID, l.Period(), amount, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}
	return count, nil
}

// CheckAndConsume admits one operation if the caller is under quota and
// returns the updated usage. Over quota it returns *QuotaExceededError and
// the bucket is left untouched.
func (l *Ledger) CheckAndConsume(ctx context.Context, userID string, tier store.Tier) (*Usage, error) {
	limit, err := l.limits.For(tier)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	period := now.Format(PeriodLayout)

	count, admitted, err := l.store.ConsumeUsage(ctx, userID, period, limit, now)
	if err != nil {
		return nil, fmt.Errorf("consuming usage: %w", err)
	}
	if !admitted {
		l.logger.Info("quota exceeded", "user_id", userID, "tier", tier, "period", period, "used", count, "limit", limit)
		return nil, &QuotaExceededError{Limit: limit, Used: count, Period: period}
	}

	return newUsage(userID, period, count, limit), nil
}

// Reset deletes the bucket for period (the current one when empty) and
// reports whether it existed.
func (l *Ledger) Reset(ctx context.Context, userID, period string) (bool, error) {
	if period == "" {
		period = l.Period()
	}
	if _, err := time.Parse(PeriodLayout, period); err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	existed, err := l.store.DeleteUsage(ctx, userID, period)
	if err != nil {
		return false, fmt.Errorf("resetting usage: %w", err)
	}

	l.logger.Info("usage reset", "user_id", userID, "period", period, "existed", existed)
	return existed, nil
}

// History returns up to n most recent buckets for a user.
func (l *Ledger) History(ctx context.Context, userID string, n int) ([]*store.UsageRecord, error) {
	records, err := l.store.ListUsage(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("listing usage: %w", err)
	}
	return records, nil
}
