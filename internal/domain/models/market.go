package models

import "time"

// Column names shared by the price source, the store and the analysis input.
const (
	ColGoldPrice       = "gold_price"
	ColSilverPrice     = "silver_price"
	ColGoldSilverRatio = "gold_silver_ratio"
)

// Observation is one dated row of named values from a data source.
type Observation struct {
	Date   time.Time
	Values map[string]float64
}

// PriceRow is one trading day of gold and silver closes.
type PriceRow struct {
	Date            time.Time `json:"date"`
	GoldPrice       float64   `json:"gold_price"`
	SilverPrice     float64   `json:"silver_price"`
	GoldSilverRatio float64   `json:"gold_silver_ratio"`
}

// PriceRowFrom converts a price observation. ok is false when either metal is
// missing.
func PriceRowFrom(o Observation) (PriceRow, bool) {
	gold, okG := o.Values[ColGoldPrice]
	silver, okS := o.Values[ColSilverPrice]
	if !okG || !okS {
		return PriceRow{}, false
	}
	ratio, ok := o.Values[ColGoldSilverRatio]
	if !ok && silver != 0 {
		ratio = gold / silver
	}
	return PriceRow{Date: o.Date, GoldPrice: gold, SilverPrice: silver, GoldSilverRatio: ratio}, true
}

// MacroRow is one dated value of a named macro indicator.
type MacroRow struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Value float64   `json:"value"`
}

// MacroRowsFrom flattens macro observations into rows.
func MacroRowsFrom(obs []Observation) []MacroRow {
	out := make([]MacroRow, 0, len(obs)*4)
	for _, o := range obs {
		for name, v := range o.Values {
			out = append(out, MacroRow{Date: o.Date, Name: name, Value: v})
		}
	}
	return out
}

// Quote is one live trade print.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteSnapshot is the latest live gold and silver quotes with the derived ratio.
type QuoteSnapshot struct {
	Gold      *Quote    `json:"gold"`
	Silver    *Quote    `json:"silver"`
	Ratio     *float64  `json:"gold_silver_ratio"`
	Connected bool      `json:"connected"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ManagedTable is a table that maintenance archives, rotates and backs up.
type ManagedTable struct {
	Name string `json:"name"`
	// Results tables follow the shorter analysis retention window.
	Results bool `json:"results"`
}

// TableCount summarizes one stored table.
type TableCount struct {
	Table  string    `json:"table"`
	Rows   uint64    `json:"rows"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}
