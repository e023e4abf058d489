// ABOUTME: Usage summary payload reported to API clients
// ABOUTME: Shape matches the /api/v1/usage response

package billing

import (
	"context"

	"github.com/lautrek/tollgate/internal/store"
)

// Operations is the counter section of UsageStats.
type Operations struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// UsageStats summarizes a user's standing in the current period.
type UsageStats struct {
	Tier       store.Tier `json:"tier"`
	Period     string     `json:"period"`
	Operations Operations `json:"operations"`
	IsLimited  bool       `json:"is_limited"`
}

// Stats reports the current period's usage for a user.
func (l *Ledger) Stats(ctx context.Context, userID string, tier store.Tier) (*UsageStats, error) {
	u, err := l.GetUsage(ctx, userID, tier)
	if err != nil {
		return nil, err
	}
	return u.Stats(tier), nil
}

// Stats converts a usage snapshot into the reporting shape.
func (u *Usage) Stats(tier store.Tier) *UsageStats {
	return &UsageStats{
		Tier:   tier,
		Period: u.Period,
		Operations: Operations{
			Used:      u.Used,
			Limit:     u.Limit,
			Remaining: u.Remaining,
		},
		IsLimited: u.IsLimited,
	}
}
