package billing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lautrek/tollgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Stats(t *testing.T) {
	l, _ := setupTestLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, "user-1", 7)
	require.NoError(t, err)

	stats, err := l.Stats(ctx, "user-1", store.TierFree)
	require.NoError(t, err)

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tier": "free",
		"period": "2025-03",
		"operations": {"used": 7, "limit": 100, "remaining": 93},
		"is_limited": false
	}`, string(data))
}

func TestLedger_Stats_Unlimited(t *testing.T) {
	l, _ := setupTestLedger(t)

	stats, err := l.Stats(context.Background(), "user-1", store.TierEnterprise)
	require.NoError(t, err)
	assert.Equal(t, Operations{Used: 0, Limit: -1, Remaining: -1}, stats.Operations)
	assert.False(t, stats.IsLimited)
}
