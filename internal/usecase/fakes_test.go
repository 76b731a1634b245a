package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/util"
)

var errBoom = errors.New("boom")

type fakeSource struct {
	name      string
	obs       []models.Observation
	err       error
	from, to  time.Time
	fetchHits int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, from, to time.Time) ([]models.Observation, error) {
	f.fetchHits++
	f.from, f.to = from, to
	return f.obs, f.err
}

func (f *fakeSource) Latest(context.Context) (*models.Observation, error) {
	if len(f.obs) == 0 {
		return nil, drepo.ErrNotFound
	}
	return &f.obs[len(f.obs)-1], nil
}

type fakeSeries struct {
	mu       sync.Mutex
	prices   []models.PriceRow
	macro    []models.MacroRow
	saveErr  error
	macroErr error
	// entered is closed by the first LatestPrices call, which then waits for
	// release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSeries) SavePrices(_ context.Context, rows []models.PriceRow) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = append(f.prices, rows...)
	sort.Slice(f.prices, func(i, j int) bool { return f.prices[i].Date.Before(f.prices[j].Date) })
	return nil
}

func (f *fakeSeries) SaveMacro(_ context.Context, rows []models.MacroRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macro = append(f.macro, rows...)
	return nil
}

func (f *fakeSeries) LatestPrices(_ context.Context, n int) ([]models.PriceRow, error) {
	f.mu.Lock()
	entered, release := f.entered, f.release
	f.entered = nil
	f.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.prices) {
		n = len(f.prices)
	}
	return append([]models.PriceRow(nil), f.prices[len(f.prices)-n:]...), nil
}

func (f *fakeSeries) LatestMacro(context.Context) (map[string]float64, error) {
	if f.macroErr != nil {
		return nil, f.macroErr
	}
	out := map[string]float64{}
	for _, r := range f.macro {
		out[r.Name] = r.Value
	}
	return out, nil
}

func (f *fakeSeries) CountPrices(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.prices)), nil
}

func (f *fakeSeries) PricesBetween(context.Context, time.Time, time.Time) ([]models.PriceRow, error) {
	return f.prices, nil
}

func (f *fakeSeries) MacroBetween(context.Context, time.Time, time.Time) ([]models.MacroRow, error) {
	return f.macro, nil
}

type fakeResults struct {
	saved   []models.AnalysisRecord
	saveErr error
}

func (f *fakeResults) Save(_ context.Context, rec *models.AnalysisRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *rec)
	return nil
}

func (f *fakeResults) Latest(context.Context) (*models.AnalysisRecord, error) {
	if len(f.saved) == 0 {
		return nil, drepo.ErrNotFound
	}
	rec := f.saved[len(f.saved)-1]
	return &rec, nil
}

func (f *fakeResults) Between(_ context.Context, _, _ time.Time, limit int) ([]models.AnalysisRecord, error) {
	if limit < len(f.saved) {
		return f.saved[:limit], nil
	}
	return f.saved, nil
}

type fakeCache struct {
	rec    *models.AnalysisRecord
	sets   int
	setErr error
}

func (f *fakeCache) GetLatest(context.Context) (*models.AnalysisRecord, error) {
	if f.rec == nil {
		return nil, errors.New("miss")
	}
	return f.rec, nil
}

func (f *fakeCache) SetLatest(_ context.Context, rec *models.AnalysisRecord) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.rec = rec
	f.sets++
	return nil
}

type fakeAlerts struct {
	published []string
	err       error
}

func (f *fakeAlerts) PublishAnalysis(_ context.Context, rec *models.AnalysisRecord) error {
	f.published = append(f.published, rec.RunID)
	return f.err
}

func (f *fakeAlerts) Close() error { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	analyses []string
	signals  []string
	errors   []string
	prices   map[string]float64
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{prices: map[string]float64{}} }

func (f *fakeMetrics) RecordAnalysis(level string, _ int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, level)
}

func (f *fakeMetrics) RecordSignal(signalType, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signalType)
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, kind)
}

func (f *fakeMetrics) RecordLastPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *fakeMetrics) RecordLatency(string, float64) {}

func (f *fakeMetrics) errorKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

// fakeMaintainer keeps row dates per table and exports one CSV line per row.
type fakeMaintainer struct {
	mu        sync.Mutex
	rows      map[string][]time.Time
	counts    []models.TableCount
	exportErr map[string]error
	deleteErr error
	cutoffs   map[string]time.Time
	optimized []string
}

func (f *fakeMaintainer) Tables() []models.ManagedTable {
	return []models.ManagedTable{{Name: "price_data"}, {Name: "macro_indicators"}, {Name: "analysis_results", Results: true}}
}

func (f *fakeMaintainer) ExportRows(_ context.Context, table string, before time.Time, w io.Writer) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.exportErr[table]; err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, "date\n"); err != nil {
		return 0, err
	}
	var n uint64
	for _, d := range f.rows[table] {
		if !before.IsZero() && !d.Before(before) {
			continue
		}
		if _, err := io.WriteString(w, util.FormatDate(d)+"\n"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *fakeMaintainer) DeleteBefore(_ context.Context, table string, cutoff time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if f.cutoffs == nil {
		f.cutoffs = make(map[string]time.Time)
	}
	f.cutoffs[table] = cutoff
	var kept []time.Time
	var n uint64
	for _, d := range f.rows[table] {
		if d.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.rows[table] = kept
	return n, nil
}

func (f *fakeMaintainer) Optimize(_ context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimized = append(f.optimized, table)
	return nil
}

func (f *fakeMaintainer) TableCounts(context.Context) ([]models.TableCount, error) {
	return f.counts, nil
}

var (
	_ drepo.SeriesStore    = (*fakeSeries)(nil)
	_ drepo.ResultStore    = (*fakeResults)(nil)
	_ drepo.ResultCache    = (*fakeCache)(nil)
	_ drepo.AlertPublisher = (*fakeAlerts)(nil)
	_ drepo.Metrics        = (*fakeMetrics)(nil)
	_ drepo.Maintainer     = (*fakeMaintainer)(nil)
)
