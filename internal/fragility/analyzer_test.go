package fragility

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultThresholds())
	require.NoError(t, err)
	return a
}

// oscillating returns n values alternating around center by +-amp.
func oscillating(n int, center, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = center + amp
		} else {
			out[i] = center - amp
		}
	}
	return out
}

func stressedInput() Input {
	ratio := append(oscillating(299, 70, 1), 86)
	silver := append(constant(295, 25), 25, 24, 23, 22.5, 22)
	gold := constant(300, 2000)
	return Input{
		Ratio:  seriesOf(ratio...),
		Silver: seriesOf(silver...),
		Gold:   seriesOf(gold...),
		Macro:  map[string]float64{"dxy": 104.2, "vix": 17.5},
	}
}

func TestAnalyzeStressedMarket(t *testing.T) {
	res, err := newTestAnalyzer(t).Analyze(stressedInput())
	require.NoError(t, err)

	assert.Equal(t, LevelCritical, res.RatioFragility)
	assert.Equal(t, res.RatioFragility, res.GoldSilverRatio.FragilityLevel)
	require.NotNil(t, res.GoldSilverRatio.ZScore)
	assert.Greater(t, *res.GoldSilverRatio.ZScore, 2.0)
	assert.Equal(t, 100.0, *res.GoldSilverRatio.Percentile)

	// silver fell 12% over five days
	assert.True(t, res.SilverMomentum.IsExtremeWeekly)
	assert.Equal(t, 100, res.FragilityScore)

	var types []SignalType
	for _, ev := range res.CompositeSignals {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []SignalType{SignalHighRatioPriceDecline, SignalExtremeStatisticalDeviation}, types)
	assert.Equal(t, 104.2, res.MacroIndicators["dxy"])
}

func TestAnalyzeConstantRatio(t *testing.T) {
	in := Input{
		Ratio:  seriesOf(constant(300, 70)...),
		Silver: seriesOf(constant(300, 25)...),
		Gold:   seriesOf(constant(300, 1750)...),
	}
	res, err := newTestAnalyzer(t).Analyze(in)
	require.NoError(t, err)

	assert.Equal(t, 0.0, *res.GoldSilverRatio.ZScore)
	assert.InDelta(t, 50.0, *res.GoldSilverRatio.Percentile, 1e-9)
	assert.Equal(t, 0.0, *res.GoldSilverRatio.DeviationFromMA20)
	assert.Equal(t, LevelLow, res.RatioFragility)
	assert.Equal(t, "Normal range (70.0)", res.GoldSilverRatio.Interpretation)
	assert.Equal(t, 10, res.FragilityScore)
	assert.Empty(t, res.CompositeSignals)
	assert.Nil(t, res.MacroIndicators)
}

func TestAnalyzeMonotonicRatio(t *testing.T) {
	ratio := make([]float64, 300)
	for i := range ratio {
		ratio[i] = 60 + float64(i)*0.05
	}
	stats, err := newTestAnalyzer(t).AnalyzeRatio(seriesOf(ratio...))
	require.NoError(t, err)
	assert.Equal(t, 100.0, *stats.Percentile)
	assert.Greater(t, *stats.ZScore, 0.0)
	assert.Greater(t, *stats.DeviationFromMA20, 0.0)
}

func TestAnalyzeRatioShortSeriesLeavesWindowsUndefined(t *testing.T) {
	stats, err := newTestAnalyzer(t).AnalyzeRatio(seriesOf(oscillating(30, 82, 0.5)...))
	require.NoError(t, err)

	assert.Nil(t, stats.ZScore)
	assert.Nil(t, stats.Percentile)
	assert.Nil(t, stats.MA50)
	require.NotNil(t, stats.MA20)
	require.NotNil(t, stats.DeviationFromMA20)
	// undefined z is treated as 0 in the cascade
	assert.Equal(t, LevelHigh, stats.FragilityLevel)

	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"zscore":null`)
	assert.Contains(t, string(raw), `"ma_50":null`)
}

func TestAnalyzeRatioTooShort(t *testing.T) {
	_, err := newTestAnalyzer(t).AnalyzeRatio(seriesOf(70))
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeShortSilver(t *testing.T) {
	in := stressedInput()
	in.Silver = seriesOf(constant(10, 25)...)
	_, err := newTestAnalyzer(t).Analyze(in)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeRejectsMalformedSeries(t *testing.T) {
	in := stressedInput()
	gold := append(TimeSeries{}, in.Gold...)
	gold[10].Date = gold[9].Date
	in.Gold = gold
	_, err := newTestAnalyzer(t).Analyze(in)
	require.ErrorIs(t, err, ErrMalformedSeries)

	in = stressedInput()
	in.Ratio = TimeSeries{}
	_, err = newTestAnalyzer(t).Analyze(in)
	require.ErrorIs(t, err, ErrMalformedSeries)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := newTestAnalyzer(t)
	first, err := a.Analyze(stressedInput())
	require.NoError(t, err)
	second, err := a.Analyze(stressedInput())
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestAnalyzeDoesNotAliasMacro(t *testing.T) {
	in := stressedInput()
	res, err := newTestAnalyzer(t).Analyze(in)
	require.NoError(t, err)
	in.Macro["dxy"] = 0
	assert.Equal(t, 104.2, res.MacroIndicators["dxy"])
}
