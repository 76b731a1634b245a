package repository

import "MetalPulse/internal/domain/models"

const (
	tablePrices  = "price_data"
	tableMacro   = "macro_indicators"
	tableResults = "analysis_results"
)

// Schema is the idempotent DDL for every table the service owns. ReplacingMergeTree
// keeps the newest version of a row per sort key, so re-syncing a day overwrites it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS price_data (
        date              Date,
        gold_price        Float64,
        silver_price      Float64,
        gold_silver_ratio Float64,
        updated_at        DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY date`,
	`CREATE TABLE IF NOT EXISTS macro_indicators (
        date       Date,
        name       LowCardinality(String),
        value      Float64,
        updated_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY (name, date)`,
	`CREATE TABLE IF NOT EXISTS analysis_results (
        date             Date,
        run_id           String,
        fragility_level  LowCardinality(String),
        fragility_score  UInt8,
        ratio_zscore     Nullable(Float64),
        ratio_percentile Nullable(Float64),
        analysis_json    String,
        created_at       DateTime64(3)
    ) ENGINE = ReplacingMergeTree(created_at)
    ORDER BY date`,
}

// managedTables are archived, rotated and reported by maintenance, in this order.
var managedTables = []models.ManagedTable{
	{Name: tablePrices},
	{Name: tableMacro},
	{Name: tableResults, Results: true},
}

func isManaged(table string) bool {
	for _, t := range managedTables {
		if t.Name == table {
			return true
		}
	}
	return false
}
