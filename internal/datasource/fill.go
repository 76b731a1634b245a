package datasource

import (
	"sort"
	"time"

	"MetalPulse/internal/domain/models"
	"MetalPulse/pkg/util"
)

// columns maps a column name to its dated values.
type columns map[string]map[time.Time]float64

func (c columns) set(name string, day time.Time, v float64) {
	col, ok := c[name]
	if !ok {
		col = make(map[time.Time]float64)
		c[name] = col
	}
	col[util.Day(day)] = v
}

// align joins the columns on the union of their dates in ascending order and
// forward-fills gaps. A column has no value before its first observation.
func align(c columns) []models.Observation {
	seen := make(map[time.Time]struct{})
	for _, col := range c {
		for d := range col {
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	last := make(map[string]float64, len(c))
	out := make([]models.Observation, 0, len(dates))
	for _, d := range dates {
		for name, col := range c {
			if v, ok := col[d]; ok {
				last[name] = v
			}
		}
		vals := make(map[string]float64, len(last))
		for k, v := range last {
			vals[k] = v
		}
		out = append(out, models.Observation{Date: d, Values: vals})
	}
	return out
}

// within keeps observations dated in [from, to].
func within(obs []models.Observation, from, to time.Time) []models.Observation {
	from, to = util.Day(from), util.Day(to)
	out := obs[:0]
	for _, o := range obs {
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}
