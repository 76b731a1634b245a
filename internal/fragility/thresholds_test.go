package fragility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholdsValid(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	got := Thresholds{Ratio: RatioThresholds{CriticalHigh: 90, High: 82}}.WithDefaults()
	assert.Equal(t, 90.0, got.Ratio.CriticalHigh)
	assert.Equal(t, 82.0, got.Ratio.High)
	assert.Equal(t, 50.0, got.Ratio.Low)
	assert.Equal(t, 252, got.Statistics.ZScoreWindow)
	assert.Equal(t, 10.0, got.PriceChange.WeeklyExtreme)
}

func TestValidateRejectsBadOrdering(t *testing.T) {
	cases := map[string]func(*Thresholds){
		"critical high not above high": func(th *Thresholds) { th.Ratio.CriticalHigh = 80 },
		"low not above critical low":   func(th *Thresholds) { th.Ratio.CriticalLow = 50 },
		"empty normal band":            func(th *Thresholds) { th.Ratio.High = 49; th.Ratio.CriticalHigh = 60 },
		"zscore extreme below high":    func(th *Thresholds) { th.ZScore.Extreme = 1.2 },
		"zscore high below moderate":   func(th *Thresholds) { th.ZScore.Moderate = 1.6 },
		"negative moderate":            func(th *Thresholds) { th.ZScore.Moderate = -1 },
		"nan threshold":                func(th *Thresholds) { th.Ratio.High = math.NaN() },
		"zero daily extreme":           func(th *Thresholds) { th.PriceChange.DailyExtreme = 0 },
		"window too small":             func(th *Thresholds) { th.Statistics.ZScoreWindow = 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			th := DefaultThresholds()
			mutate(&th)
			assert.ErrorIs(t, th.Validate(), ErrInvalidConfiguration)
		})
	}
}

func TestNewAnalyzerValidatesOnce(t *testing.T) {
	th := DefaultThresholds()
	th.ZScore.Extreme = 1.0
	_, err := NewAnalyzer(th)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
