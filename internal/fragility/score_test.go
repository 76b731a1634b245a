package fragility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		silver MomentumStats
		z      float64
		want   int
	}{
		{"calm", LevelLow, MomentumStats{}, 0.5, 10},
		{"moderate daily", LevelModerate, MomentumStats{IsExtremeDaily: true}, 1.2, 50},
		{"weekly takes priority over daily", LevelHigh, MomentumStats{IsExtremeDaily: true, IsExtremeWeekly: true}, 0, 60},
		{"negative z uses magnitude", LevelHigh, MomentumStats{}, -1.7, 50},
		{"capped", LevelCritical, MomentumStats{IsExtremeWeekly: true}, 2.5, 100},
		{"unknown level scores as low", Level(""), MomentumStats{}, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.level, tt.silver, tt.z)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}
