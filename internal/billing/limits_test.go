package billing

import (
	"testing"

	"github.com/lautrek/tollgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimits_For(t *testing.T) {
	limit, err := DefaultMonthlyLimits.For(store.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(100), limit)

	limit, err = DefaultMonthlyLimits.For(store.TierPro)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), limit)

	limit, err = DefaultMonthlyLimits.For(store.TierEnterprise)
	require.NoError(t, err)
	assert.Equal(t, Unlimited, limit)

	_, err = DefaultMonthlyLimits.For(store.Tier("gold"))
	assert.ErrorIs(t, err, store.ErrUnknownTier)

	_, err = Limits{store.TierFree: 1}.For(store.TierPro)
	assert.Error(t, err)
}

func TestLimits_Merge(t *testing.T) {
	merged, err := DefaultMonthlyLimits.Merge(map[string]int64{"pro": 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), merged[store.TierPro])
	assert.Equal(t, int64(100), merged[store.TierFree])
	assert.Equal(t, int64(5000), DefaultMonthlyLimits[store.TierPro], "original untouched")

	_, err = DefaultMonthlyLimits.Merge(map[string]int64{"gold": 1})
	assert.ErrorIs(t, err, store.ErrUnknownTier)

	_, err = DefaultMonthlyLimits.Merge(map[string]int64{"free": -2})
	assert.Error(t, err)
}
