package fragility

import (
	"fmt"
	"math"
)

// extremeDeviation is a fixed literal, independent of ZScoreThresholds.Extreme.
const extremeDeviation = 2.0

// SignalContext is what the composite rules read.
type SignalContext struct {
	Level  Level
	Ratio  RatioStats
	Silver MomentumStats
}

type signalRule func(SignalContext) (SignalEvent, bool)

// signalRules are evaluated in order; every rule runs and may emit one event.
var signalRules = []signalRule{
	highRatioPriceDecline,
	lowRatioPriceSurge,
	extremeStatisticalDeviation,
}

// DetectSignals evaluates every composite rule and returns the emitted events in
// rule order. The result is never nil.
func DetectSignals(sc SignalContext) []SignalEvent {
	out := make([]SignalEvent, 0, len(signalRules))
	for _, rule := range signalRules {
		if ev, ok := rule(sc); ok {
			out = append(out, ev)
		}
	}
	return out
}

func highRatioPriceDecline(sc SignalContext) (SignalEvent, bool) {
	if !sc.Level.AtLeast(LevelHigh) || !(sc.Ratio.CurrentValue > 80) || !(sc.Silver.Change5DPct < -3) {
		return SignalEvent{}, false
	}
	return SignalEvent{
		Type:     SignalHighRatioPriceDecline,
		Severity: LevelHigh,
		Message: fmt.Sprintf("Silver fell %.2f%% over 5 days while the ratio holds high at %.2f - selling pressure persists",
			sc.Silver.Change5DPct, sc.Ratio.CurrentValue),
	}, true
}

func lowRatioPriceSurge(sc SignalContext) (SignalEvent, bool) {
	if !sc.Level.AtLeast(LevelHigh) || !(sc.Ratio.CurrentValue < 55) || !(sc.Silver.Change5DPct > 5) {
		return SignalEvent{}, false
	}
	return SignalEvent{
		Type:     SignalLowRatioPriceSurge,
		Severity: LevelModerate,
		Message: fmt.Sprintf("Silver surged %+.2f%% over 5 days with the ratio low at %.2f - overheating, correction risk",
			sc.Silver.Change5DPct, sc.Ratio.CurrentValue),
	}, true
}

func extremeStatisticalDeviation(sc SignalContext) (SignalEvent, bool) {
	z := sc.Ratio.Z()
	if !(math.Abs(z) > extremeDeviation) {
		return SignalEvent{}, false
	}
	return SignalEvent{
		Type:     SignalExtremeStatisticalDeviation,
		Severity: LevelCritical,
		Message:  fmt.Sprintf("Statistical outlier detected (Z-score: %.2f)", z),
	}, true
}
