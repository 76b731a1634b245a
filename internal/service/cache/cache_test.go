package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MetalPulse/internal/domain/models"
	"MetalPulse/internal/fragility"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(b))

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := NewResultCache(NewTTLCache(), time.Hour)

	_, err := rc.GetLatest(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)

	z := 2.4
	rec := &models.AnalysisRecord{
		RunID: "run-1",
		Date:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Analysis: fragility.AnalysisResult{
			GoldSilverRatio: fragility.RatioStats{CurrentValue: 86, ZScore: &z},
			RatioFragility:  fragility.LevelCritical,
			FragilityScore:  100,
		},
	}
	require.NoError(t, rc.SetLatest(ctx, rec))

	got, err := rc.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, fragility.LevelCritical, got.Level())
	assert.Equal(t, 2.4, got.Analysis.GoldSilverRatio.Z())
	assert.Nil(t, got.Analysis.GoldSilverRatio.Percentile)
}
