package fragility

import "math"

const maxScore = 100

var severityPoints = map[Level]int{
	LevelCritical: 40,
	LevelHigh:     30,
	LevelModerate: 20,
	LevelLow:      10,
}

// Score sums the severity, momentum and statistical contributions and caps the
// total at 100.
func Score(level Level, silver MomentumStats, zscore float64) int {
	return capScore(severityScore(level), momentumScore(silver), statisticalScore(zscore))
}

func severityScore(level Level) int {
	if p, ok := severityPoints[level]; ok {
		return p
	}
	return severityPoints[LevelLow]
}

// momentumScore gives the weekly flag priority; the two flags are not summed.
func momentumScore(m MomentumStats) int {
	switch {
	case m.IsExtremeWeekly:
		return 30
	case m.IsExtremeDaily:
		return 20
	default:
		return 0
	}
}

func statisticalScore(zscore float64) int {
	az := math.Abs(zscore)
	switch {
	case az >= 2.0:
		return 30
	case az >= 1.5:
		return 20
	case az >= 1.0:
		return 10
	default:
		return 0
	}
}

func capScore(parts ...int) int {
	sum := 0
	for _, p := range parts {
		sum += p
	}
	if sum > maxScore {
		return maxScore
	}
	return sum
}
