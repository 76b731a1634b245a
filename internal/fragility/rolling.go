package fragility

import "math"

// Rolling computations follow the conventional full-window semantics: an entry is
// defined only once `window` observations are available, and a NaN inside the window
// makes that entry NaN without affecting other entries.

// RollingMean returns the trailing arithmetic mean at each index.
func RollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = mean(w)
	}
	return out
}

// RollingStd returns the trailing sample standard deviation (ddof=1) at each index.
func RollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = sampleStd(w)
	}
	return out
}

// ZScore returns (value - rolling mean) / rolling sample std at each index.
// The first window-1 entries are NaN. A window with zero dispersion yields 0.
func ZScore(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		if isConstant(w) {
			out[i] = 0
			continue
		}
		sd := sampleStd(w)
		if sd == 0 {
			out[i] = 0
			continue
		}
		out[i] = (values[i] - mean(w)) / sd
	}
	return out
}

// PercentileRank returns the position of each value within its trailing window,
// scaled to [0,100] as (rank-1)/(n-1)*100 where rank is the average rank among the
// window's non-missing values. Fewer than two non-missing values yields exactly 50.
// Missing values shrink n rather than voiding the window, so [NaN, 10, 20] with
// window 3 ranks 20 at 100. A missing current value stays NaN.
func PercentileRank(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		cur := values[i]
		if math.IsNaN(cur) {
			continue
		}
		var n, less, equal int
		for _, v := range values[i-window+1 : i+1] {
			if math.IsNaN(v) {
				continue
			}
			n++
			switch {
			case v < cur:
				less++
			case v == cur:
				equal++
			}
		}
		if n < 2 {
			out[i] = 50.0
			continue
		}
		rank := float64(less) + float64(equal+1)/2
		out[i] = (rank - 1) / float64(n-1) * 100
	}
	return out
}

// PctChange returns v[i]/v[i-1] - 1 at each index; index 0 is NaN.
func PctChange(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func isConstant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64) float64 {
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func lastOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}
