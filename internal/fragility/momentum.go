package fragility

import (
	"fmt"
	"math"
)

const (
	volatilityWindow = 20
	tradingDays      = 252
)

// momentumHorizons are fixed offsets, not configurable windows.
var momentumHorizons = [...]int{1, 5, 20}

// minMomentumPoints is the shortest series that supports every horizon.
const minMomentumPoints = 21

// AnalyzeMomentum computes 1/5/20-day percentage changes, annualized 20-day realized
// volatility and extreme-move flags for one price series.
func AnalyzeMomentum(series TimeSeries, name string, th PriceChangeThresholds) (MomentumStats, error) {
	if err := series.Validate(); err != nil {
		return MomentumStats{}, fmt.Errorf("%s momentum: %w", name, err)
	}
	if len(series) < minMomentumPoints {
		return MomentumStats{}, fmt.Errorf("%s momentum needs %d points, got %d: %w",
			name, minMomentumPoints, len(series), ErrInsufficientData)
	}

	prices := series.Values()
	last := len(prices) - 1
	current := prices[last]
	if !isFinite(current) {
		return MomentumStats{}, fmt.Errorf("%s momentum: final price undefined: %w", name, ErrInsufficientData)
	}

	var changes [len(momentumHorizons)]float64
	for i, n := range momentumHorizons {
		base := prices[last-n]
		c := (current/base - 1) * 100
		if !isFinite(c) {
			return MomentumStats{}, fmt.Errorf("%s momentum: %d-day change undefined: %w", name, n, ErrInsufficientData)
		}
		changes[i] = c
	}

	vol := lastOf(RollingStd(PctChange(prices), volatilityWindow)) * math.Sqrt(tradingDays) * 100

	return MomentumStats{
		Name:                    name,
		CurrentPrice:            current,
		Change1DPct:             changes[0],
		Change5DPct:             changes[1],
		Change20DPct:            changes[2],
		Volatility20DAnnualized: ptr(vol),
		IsExtremeDaily:          math.Abs(changes[0]) >= th.DailyExtreme,
		IsExtremeWeekly:         math.Abs(changes[1]) >= th.WeeklyExtreme,
	}, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
