package fragility

import (
	"fmt"
	"math"
)

const (
	shortMA = 20
	longMA  = 50
)

// Analyzer runs the full scoring pipeline. It holds only immutable thresholds and is
// safe for concurrent use.
type Analyzer struct {
	th       Thresholds
	assessor *Assessor
}

// NewAnalyzer validates the thresholds once before any computation.
func NewAnalyzer(th Thresholds) (*Analyzer, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{th: th, assessor: NewAssessor(th)}, nil
}

// Thresholds returns the configuration the analyzer was built with.
func (a *Analyzer) Thresholds() Thresholds { return a.th }

// AnalyzeRatio computes the ratio snapshot at the last index using the configured
// windows.
func (a *Analyzer) AnalyzeRatio(series TimeSeries) (RatioStats, error) {
	return a.AnalyzeRatioWindows(series, a.th.Statistics.ZScoreWindow, a.th.Statistics.LookbackPeriod)
}

// AnalyzeRatioWindows is AnalyzeRatio with explicit z-score and percentile windows.
func (a *Analyzer) AnalyzeRatioWindows(series TimeSeries, zWindow, pctWindow int) (RatioStats, error) {
	if err := series.Validate(); err != nil {
		return RatioStats{}, fmt.Errorf("ratio: %w", err)
	}
	if len(series) < 2 {
		return RatioStats{}, fmt.Errorf("ratio needs at least 2 points, got %d: %w", len(series), ErrInsufficientData)
	}
	values := series.Values()
	current := lastOf(values)
	if !isFinite(current) {
		return RatioStats{}, fmt.Errorf("ratio: final value undefined: %w", ErrInsufficientData)
	}

	z := lastOf(ZScore(values, zWindow))
	pct := lastOf(PercentileRank(values, pctWindow))
	ma20 := lastOf(RollingMean(values, shortMA))
	ma50 := lastOf(RollingMean(values, longMA))
	dev := (current - ma20) / ma20 * 100

	zForRules := z
	if math.IsNaN(zForRules) {
		zForRules = 0
	}
	return RatioStats{
		CurrentValue:      current,
		ZScore:            ptr(z),
		Percentile:        ptr(pct),
		MA20:              ptr(ma20),
		MA50:              ptr(ma50),
		DeviationFromMA20: ptr(dev),
		FragilityLevel:    a.assessor.Assess(current, zForRules),
		Interpretation:    a.assessor.Interpret(current),
	}, nil
}

// AnalyzeMomentum computes momentum for one asset with the configured thresholds.
func (a *Analyzer) AnalyzeMomentum(series TimeSeries, name string) (MomentumStats, error) {
	return AnalyzeMomentum(series, name, a.th.PriceChange)
}

// Analyze runs every stage and assembles a fresh result. Silver is the tracked asset
// for composite signals and the momentum contribution of the score.
func (a *Analyzer) Analyze(in Input) (*AnalysisResult, error) {
	for _, s := range []struct {
		name   string
		series TimeSeries
	}{{"ratio", in.Ratio}, {"silver", in.Silver}, {"gold", in.Gold}} {
		if err := s.series.Validate(); err != nil {
			return nil, fmt.Errorf("%s series: %w", s.name, err)
		}
	}

	ratio, err := a.AnalyzeRatio(in.Ratio)
	if err != nil {
		return nil, err
	}
	silver, err := a.AnalyzeMomentum(in.Silver, "silver")
	if err != nil {
		return nil, err
	}
	gold, err := a.AnalyzeMomentum(in.Gold, "gold")
	if err != nil {
		return nil, err
	}

	level := ratio.FragilityLevel
	res := &AnalysisResult{
		GoldSilverRatio:  ratio,
		RatioFragility:   level,
		SilverMomentum:   silver,
		GoldMomentum:     gold,
		CompositeSignals: DetectSignals(SignalContext{Level: level, Ratio: ratio, Silver: silver}),
		FragilityScore:   Score(level, silver, ratio.Z()),
	}
	if len(in.Macro) > 0 {
		res.MacroIndicators = make(map[string]float64, len(in.Macro))
		for k, v := range in.Macro {
			res.MacroIndicators[k] = v
		}
	}
	return res, nil
}
