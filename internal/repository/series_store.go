package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"MetalPulse/internal/domain/models"
	domrepo "MetalPulse/internal/domain/repository"
	applogger "MetalPulse/pkg/logger"
)

// insertChunk bounds the rows per multi-row INSERT.
const insertChunk = 2000

// CHSeriesStore implements SeriesStore and Maintainer on ClickHouse.
type CHSeriesStore struct {
	db *sql.DB
	l  *applogger.Logger
}

var (
	_ domrepo.SeriesStore = (*CHSeriesStore)(nil)
	_ domrepo.Maintainer  = (*CHSeriesStore)(nil)
)

func NewCHSeriesStore(db *sql.DB, l *applogger.Logger) *CHSeriesStore {
	return &CHSeriesStore{db: db, l: l.Component("series_store")}
}

func (s *CHSeriesStore) SavePrices(ctx context.Context, rows []models.PriceRow) error {
	return insertChunked(ctx, s.db, tablePrices, []string{"date", "gold_price", "silver_price", "gold_silver_ratio"}, len(rows),
		func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.Date, r.GoldPrice, r.SilverPrice, r.GoldSilverRatio}
		})
}

func (s *CHSeriesStore) SaveMacro(ctx context.Context, rows []models.MacroRow) error {
	return insertChunked(ctx, s.db, tableMacro, []string{"date", "name", "value"}, len(rows),
		func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.Date, r.Name, r.Value}
		})
}

// insertChunked writes n rows as multi-row VALUES statements to cut round trips.
func insertChunked(ctx context.Context, db *sql.DB, table string, cols []string, n int, row func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for start := 0; start < n; start += insertChunk {
		end := start + insertChunk
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, row(i)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(values, ","))
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", table, start, end, err)
		}
	}
	return nil
}

// LatestPrices returns the last n rows in ascending date order.
func (s *CHSeriesStore) LatestPrices(ctx context.Context, n int) ([]models.PriceRow, error) {
	start := time.Now()
	const q = `
        SELECT date, gold_price, silver_price, gold_silver_ratio
        FROM price_data FINAL
        ORDER BY date DESC
        LIMIT ?
    `
	out, err := s.queryPrices(ctx, q, n)
	if err != nil {
		s.l.Error("clickhouse latest_prices failed", applogger.Int("limit", n), applogger.Error(err))
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_prices ok",
		applogger.Int("limit", n),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHSeriesStore) PricesBetween(ctx context.Context, from, to time.Time) ([]models.PriceRow, error) {
	const q = `
        SELECT date, gold_price, silver_price, gold_silver_ratio
        FROM price_data FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY date ASC
    `
	return s.queryPrices(ctx, q, from, to)
}

func (s *CHSeriesStore) queryPrices(ctx context.Context, q string, args ...interface{}) ([]models.PriceRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []models.PriceRow
	for rows.Next() {
		var r models.PriceRow
		if err := rows.Scan(&r.Date, &r.GoldPrice, &r.SilverPrice, &r.GoldSilverRatio); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// LatestMacro returns the most recent value of every indicator.
func (s *CHSeriesStore) LatestMacro(ctx context.Context) (map[string]float64, error) {
	const q = `
        SELECT name, argMax(value, date)
        FROM macro_indicators FINAL
        GROUP BY name
    `
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query latest macro: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan macro: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *CHSeriesStore) MacroBetween(ctx context.Context, from, to time.Time) ([]models.MacroRow, error) {
	const q = `
        SELECT date, name, value
        FROM macro_indicators FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY date ASC, name ASC
    `
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("query macro: %w", err)
	}
	defer rows.Close()

	var out []models.MacroRow
	for rows.Next() {
		var r models.MacroRow
		if err := rows.Scan(&r.Date, &r.Name, &r.Value); err != nil {
			return nil, fmt.Errorf("scan macro: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHSeriesStore) CountPrices(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, "SELECT count() FROM price_data FINAL").Scan(&n); err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}

// Tables lists the tables maintenance owns.
func (s *CHSeriesStore) Tables() []models.ManagedTable {
	return append([]models.ManagedTable(nil), managedTables...)
}

// ExportRows streams table rows as CSV. Column order follows system.columns so
// archives stay readable after schema additions.
func (s *CHSeriesStore) ExportRows(ctx context.Context, table string, before time.Time, w io.Writer) (uint64, error) {
	if !isManaged(table) {
		return 0, fmt.Errorf("export %s: unknown table", table)
	}
	cols, err := s.columns(ctx, table)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, strings.Join(cols, ",")+"\n"); err != nil {
		return 0, fmt.Errorf("write %s header: %w", table, err)
	}

	q := fmt.Sprintf("SELECT formatRow('CSV', %s) FROM %s FINAL", strings.Join(cols, ", "), table)
	var args []interface{}
	if !before.IsZero() {
		q += " WHERE date < ?"
		args = append(args, before)
	}
	q += " ORDER BY date"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	var n uint64
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return n, fmt.Errorf("scan %s row: %w", table, err)
		}
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := io.WriteString(w, line); err != nil {
			return n, fmt.Errorf("write %s row: %w", table, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("export %s: %w", table, err)
	}
	return n, nil
}

func (s *CHSeriesStore) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM system.columns WHERE database = currentDatabase() AND table = ? ORDER BY position", table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("columns of %s: table not found", table)
	}
	return cols, nil
}

// DeleteBefore counts then deletes rows dated before cutoff. ClickHouse mutations
// are asynchronous; the count is what was scheduled for removal.
func (s *CHSeriesStore) DeleteBefore(ctx context.Context, table string, cutoff time.Time) (uint64, error) {
	if !isManaged(table) {
		return 0, fmt.Errorf("delete from %s: unknown table", table)
	}
	var n uint64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s WHERE date < ?", table), cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s before cutoff: %w", table, err)
	}
	if n > 0 {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DELETE WHERE date < ?", table), cutoff); err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	s.l.Info("rotated table",
		applogger.String("table", table),
		applogger.Date("cutoff", cutoff),
		applogger.Int64("rows", int64(n)),
	)
	return n, nil
}

// Optimize forces a final merge of table.
func (s *CHSeriesStore) Optimize(ctx context.Context, table string) error {
	if !isManaged(table) {
		return fmt.Errorf("optimize %s: unknown table", table)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("OPTIMIZE TABLE %s FINAL", table)); err != nil {
		return fmt.Errorf("optimize %s: %w", table, err)
	}
	return nil
}

// TableCounts reports row counts and date coverage for every managed table.
func (s *CHSeriesStore) TableCounts(ctx context.Context) ([]models.TableCount, error) {
	out := make([]models.TableCount, 0, len(managedTables))
	for _, t := range managedTables {
		tc := models.TableCount{Table: t.Name}
		q := fmt.Sprintf("SELECT count(), min(date), max(date) FROM %s FINAL", t.Name)
		if err := s.db.QueryRowContext(ctx, q).Scan(&tc.Rows, &tc.Oldest, &tc.Newest); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		out = append(out, tc)
	}
	return out, nil
}
