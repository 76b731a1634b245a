package fragility

import "time"

var seriesStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesOf(values ...float64) TimeSeries {
	out := make(TimeSeries, len(values))
	for i, v := range values {
		out[i] = Point{Date: seriesStart.AddDate(0, 0, i), Value: v}
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func f64(v float64) *float64 { return &v }
