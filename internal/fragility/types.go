package fragility

import (
	"fmt"
	"math"
	"time"
)

// Level is a discrete severity, ordered LOW < MODERATE < HIGH < CRITICAL.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Rank returns the ordinal position of the level (LOW=0 ... CRITICAL=3).
func (l Level) Rank() int {
	switch l {
	case LevelModerate:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool { return l.Rank() >= other.Rank() }

// Point is one dated observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is a chronologically ordered sequence of points. The core never mutates it.
type TimeSeries []Point

// Validate checks that the series is non-empty with strictly increasing dates.
func (s TimeSeries) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("empty series: %w", ErrMalformedSeries)
	}
	for i := 1; i < len(s); i++ {
		prev, cur := s[i-1].Date, s[i].Date
		if cur.Equal(prev) {
			return fmt.Errorf("duplicate date %s at index %d: %w", cur.Format("2006-01-02"), i, ErrMalformedSeries)
		}
		if cur.Before(prev) {
			return fmt.Errorf("date %s at index %d precedes %s: %w",
				cur.Format("2006-01-02"), i, prev.Format("2006-01-02"), ErrMalformedSeries)
		}
	}
	return nil
}

// Values returns the numeric column of the series.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the final value, or NaN for an empty series.
func (s TimeSeries) Last() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1].Value
}

// RatioStats is the snapshot of the tracked ratio at its last index.
// Window-dependent fields are nil when the series is shorter than the window.
type RatioStats struct {
	CurrentValue      float64  `json:"current_value"`
	ZScore            *float64 `json:"zscore"`
	Percentile        *float64 `json:"percentile"`
	MA20              *float64 `json:"ma_20"`
	MA50              *float64 `json:"ma_50"`
	DeviationFromMA20 *float64 `json:"deviation_from_ma20"`
	FragilityLevel    Level    `json:"fragility_level"`
	Interpretation    string   `json:"interpretation"`
}

// Z returns the z-score, treating an undefined value as 0.
func (r RatioStats) Z() float64 {
	if r.ZScore == nil {
		return 0
	}
	return *r.ZScore
}

// MomentumStats is the short-horizon momentum snapshot for one asset.
type MomentumStats struct {
	Name                    string   `json:"name"`
	CurrentPrice            float64  `json:"current_price"`
	Change1DPct             float64  `json:"change_1d_pct"`
	Change5DPct             float64  `json:"change_5d_pct"`
	Change20DPct            float64  `json:"change_20d_pct"`
	Volatility20DAnnualized *float64 `json:"volatility_20d_annualized"`
	IsExtremeDaily          bool     `json:"is_extreme_daily"`
	IsExtremeWeekly         bool     `json:"is_extreme_weekly"`
}

// SignalType names a composite rule.
type SignalType string

const (
	SignalHighRatioPriceDecline       SignalType = "HIGH_RATIO_PRICE_DECLINE"
	SignalLowRatioPriceSurge          SignalType = "LOW_RATIO_PRICE_SURGE"
	SignalExtremeStatisticalDeviation SignalType = "EXTREME_STATISTICAL_DEVIATION"
)

// SignalEvent is one independently emitted finding.
type SignalEvent struct {
	Type     SignalType `json:"type"`
	Severity Level      `json:"severity"`
	Message  string     `json:"message"`
}

// Input is everything one analysis run reads.
type Input struct {
	Ratio  TimeSeries
	Gold   TimeSeries
	Silver TimeSeries
	// Macro is passed through untouched when non-empty.
	Macro map[string]float64
}

// AnalysisResult is the sole output of the core. Field names are fixed for downstream
// formatting and persistence.
type AnalysisResult struct {
	GoldSilverRatio  RatioStats         `json:"gold_silver_ratio"`
	RatioFragility   Level              `json:"ratio_fragility"`
	SilverMomentum   MomentumStats      `json:"silver_momentum"`
	GoldMomentum     MomentumStats      `json:"gold_momentum"`
	MacroIndicators  map[string]float64 `json:"macro_indicators,omitempty"`
	CompositeSignals []SignalEvent      `json:"composite_signals"`
	FragilityScore   int                `json:"fragility_score"`
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
