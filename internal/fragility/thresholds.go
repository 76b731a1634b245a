package fragility

import (
	"fmt"
	"math"
)

// RatioThresholds bound the normal band of the ratio.
type RatioThresholds struct {
	CriticalHigh float64 `json:"critical_high"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	CriticalLow  float64 `json:"critical_low"`
}

// ZScoreThresholds grade statistical deviation.
type ZScoreThresholds struct {
	Extreme  float64 `json:"extreme"`
	High     float64 `json:"high"`
	Moderate float64 `json:"moderate"`
}

// StatisticsWindows sizes the rolling windows.
type StatisticsWindows struct {
	LookbackPeriod int `json:"lookback_period"`
	ZScoreWindow   int `json:"zscore_window"`
}

// PriceChangeThresholds flag extreme moves, in percent.
type PriceChangeThresholds struct {
	DailyExtreme  float64 `json:"daily_extreme"`
	WeeklyExtreme float64 `json:"weekly_extreme"`
}

// Thresholds is the complete, validated configuration of one analysis run.
type Thresholds struct {
	Ratio       RatioThresholds       `json:"gold_silver_ratio"`
	ZScore      ZScoreThresholds      `json:"zscore"`
	Statistics  StatisticsWindows     `json:"statistics"`
	PriceChange PriceChangeThresholds `json:"price_change"`
}

// DefaultThresholds returns the documented defaults for every option.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Ratio:       RatioThresholds{CriticalHigh: 85, High: 80, Low: 50, CriticalLow: 45},
		ZScore:      ZScoreThresholds{Extreme: 2.0, High: 1.5, Moderate: 1.0},
		Statistics:  StatisticsWindows{LookbackPeriod: 252, ZScoreWindow: 252},
		PriceChange: PriceChangeThresholds{DailyExtreme: 5.0, WeeklyExtreme: 10.0},
	}
}

// WithDefaults fills zero-valued options from DefaultThresholds. Ordering is not
// repaired here; Validate rejects out-of-order values.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.Ratio.CriticalHigh, d.Ratio.CriticalHigh)
	fill(&t.Ratio.High, d.Ratio.High)
	fill(&t.Ratio.Low, d.Ratio.Low)
	fill(&t.Ratio.CriticalLow, d.Ratio.CriticalLow)
	fill(&t.ZScore.Extreme, d.ZScore.Extreme)
	fill(&t.ZScore.High, d.ZScore.High)
	fill(&t.ZScore.Moderate, d.ZScore.Moderate)
	fill(&t.PriceChange.DailyExtreme, d.PriceChange.DailyExtreme)
	fill(&t.PriceChange.WeeklyExtreme, d.PriceChange.WeeklyExtreme)
	if t.Statistics.LookbackPeriod == 0 {
		t.Statistics.LookbackPeriod = d.Statistics.LookbackPeriod
	}
	if t.Statistics.ZScoreWindow == 0 {
		t.Statistics.ZScoreWindow = d.Statistics.ZScoreWindow
	}
	return t
}

// Validate enforces the ordering invariants:
// critical_high > high, low > critical_low, extreme > high > moderate.
func (t Thresholds) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"gold_silver_ratio.critical_high", t.Ratio.CriticalHigh},
		{"gold_silver_ratio.high", t.Ratio.High},
		{"gold_silver_ratio.low", t.Ratio.Low},
		{"gold_silver_ratio.critical_low", t.Ratio.CriticalLow},
		{"zscore.extreme", t.ZScore.Extreme},
		{"zscore.high", t.ZScore.High},
		{"zscore.moderate", t.ZScore.Moderate},
		{"price_change.daily_extreme", t.PriceChange.DailyExtreme},
		{"price_change.weekly_extreme", t.PriceChange.WeeklyExtreme},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite: %w", f.name, ErrInvalidConfiguration)
		}
	}
	if !(t.Ratio.CriticalHigh > t.Ratio.High) {
		return fmt.Errorf("gold_silver_ratio.critical_high (%g) must exceed high (%g): %w",
			t.Ratio.CriticalHigh, t.Ratio.High, ErrInvalidConfiguration)
	}
	if !(t.Ratio.Low > t.Ratio.CriticalLow) {
		return fmt.Errorf("gold_silver_ratio.low (%g) must exceed critical_low (%g): %w",
			t.Ratio.Low, t.Ratio.CriticalLow, ErrInvalidConfiguration)
	}
	if !(t.Ratio.High > t.Ratio.Low) {
		return fmt.Errorf("gold_silver_ratio.high (%g) must exceed low (%g): %w",
			t.Ratio.High, t.Ratio.Low, ErrInvalidConfiguration)
	}
	if !(t.ZScore.Extreme > t.ZScore.High && t.ZScore.High > t.ZScore.Moderate) {
		return fmt.Errorf("zscore thresholds must satisfy extreme (%g) > high (%g) > moderate (%g): %w",
			t.ZScore.Extreme, t.ZScore.High, t.ZScore.Moderate, ErrInvalidConfiguration)
	}
	if t.ZScore.Moderate <= 0 {
		return fmt.Errorf("zscore.moderate must be positive: %w", ErrInvalidConfiguration)
	}
	if t.PriceChange.DailyExtreme <= 0 || t.PriceChange.WeeklyExtreme <= 0 {
		return fmt.Errorf("price_change thresholds must be positive: %w", ErrInvalidConfiguration)
	}
	if t.Statistics.LookbackPeriod < 2 || t.Statistics.ZScoreWindow < 2 {
		return fmt.Errorf("statistics windows must be at least 2 (lookback=%d zscore=%d): %w",
			t.Statistics.LookbackPeriod, t.Statistics.ZScoreWindow, ErrInvalidConfiguration)
	}
	return nil
}
