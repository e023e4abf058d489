// ABOUTME: Per-tier monthly operation quotas
// ABOUTME: Unlimited marks a tier with no upper bound

package billing

import (
	"fmt"

	"github.com/lautrek/tollgate/internal/store"
)

// Unlimited is the limit (and remaining) value of an unbounded tier.
const Unlimited int64 = -1

// Limits maps each tier to its monthly operation quota.
type Limits map[store.Tier]int64

// DefaultMonthlyLimits is the built-in quota table.
var DefaultMonthlyLimits = Limits{
	store.TierFree:       100,
	store.TierPro:        5000,
	store.TierEnterprise: Unlimited,
}

// For returns the quota for tier. Unknown tiers are an error rather than
// falling back to the free quota.
func (l Limits) For(tier store.Tier) (int64, error) {
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %q", store.ErrUnknownTier, tier)
	}
	limit, ok := l[tier]
	if !ok {
		return 0, fmt.Errorf("no quota configured for tier %q", tier)
	}
	return limit, nil
}

// Merge returns a copy of l with overrides applied.
func (l Limits) Merge(overrides map[string]int64) (Limits, error) {
	merged := make(Limits, len(l))
	for tier, limit := range l {
		merged[tier] = limit
	}
	for name, limit := range overrides {
		tier, err := store.ParseTier(name)
		if err != nil {
			return nil, err
		}
		if limit < Unlimited {
			return nil, fmt.Errorf("quota for tier %q must be >= -1, got %d", name, limit)
		}
		merged[tier] = limit
	}
	return merged, nil
}
