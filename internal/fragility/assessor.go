package fragility

import (
	"fmt"
	"math"
)

// severityRule pairs a predicate with the level it assigns.
type severityRule struct {
	level Level
	match func(value, absZ float64) bool
}

// Assessor classifies the ratio through an ordered, first-match-wins rule list.
type Assessor struct {
	ratio RatioThresholds
	rules []severityRule
}

// NewAssessor builds the cascade CRITICAL -> HIGH -> MODERATE; LOW is the fallback.
func NewAssessor(t Thresholds) *Assessor {
	r, z := t.Ratio, t.ZScore
	return &Assessor{
		ratio: r,
		rules: []severityRule{
			{LevelCritical, func(v, az float64) bool {
				return v >= r.CriticalHigh || v <= r.CriticalLow || az >= z.Extreme
			}},
			{LevelHigh, func(v, az float64) bool {
				return v >= r.High || v <= r.Low || az >= z.High
			}},
			{LevelModerate, func(_, az float64) bool {
				return az >= z.Moderate
			}},
		},
	}
}

// Assess returns the first level whose rule matches. A NaN z-score never matches
// a z-score branch.
func (a *Assessor) Assess(value, zscore float64) Level {
	az := math.Abs(zscore)
	for _, rule := range a.rules {
		if rule.match(value, az) {
			return rule.level
		}
	}
	return LevelLow
}

// Interpret describes which raw-value boundary the ratio crossed. It ignores the
// z-score, so it can read "normal range" while Assess reports CRITICAL.
func (a *Assessor) Interpret(value float64) string {
	switch {
	case value >= a.ratio.CriticalHigh:
		return fmt.Sprintf("Extreme high ratio (%.1f) - silver historically cheap, high reversal risk", value)
	case value >= a.ratio.High:
		return fmt.Sprintf("High ratio zone (%.1f) - silver trending cheap", value)
	case value <= a.ratio.CriticalLow:
		return fmt.Sprintf("Extreme low ratio (%.1f) - silver expensive, high correction risk", value)
	case value <= a.ratio.Low:
		return fmt.Sprintf("Low ratio zone (%.1f) - silver trending expensive", value)
	default:
		return fmt.Sprintf("Normal range (%.1f)", value)
	}
}
