package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/internal/fragility"
	"MetalPulse/internal/report"
	"MetalPulse/pkg/logger"
	"MetalPulse/pkg/util"
)

// MonitorConfig carries the sync and analysis knobs.
type MonitorConfig struct {
	// HistoryRows is how many trailing price rows feed one analysis.
	HistoryRows int
	// StartDate is where the first sync into an empty store begins.
	StartDate time.Time
	// UpdateDays is the overlap re-fetched on every incremental sync.
	UpdateDays int
}

// SyncResult reports what one sync stored.
type SyncResult struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Initial   bool      `json:"initial"`
	PriceRows int       `json:"price_rows"`
	MacroRows int       `json:"macro_rows"`
}

// MonitorUseCase syncs market data, runs the fragility analysis and fans out
// the result.
type MonitorUseCase struct {
	cfg      MonitorConfig
	analyzer *fragility.Analyzer
	prices   drepo.MarketDataSource
	macro    drepo.MarketDataSource
	series   drepo.SeriesStore
	results  drepo.ResultStore
	cache    drepo.ResultCache
	alerts   drepo.AlertPublisher
	metrics  drepo.Metrics
	reports  *report.Writer
	log      *logger.Logger
	now      func() time.Time

	// running guards Analyze and RunDaily; an overlapping trigger gets
	// ErrRunInProgress.
	running atomic.Bool
}

// NewMonitorUseCase wires the monitor. macro, cache, alerts and reports may
// be nil.
func NewMonitorUseCase(
	cfg MonitorConfig,
	analyzer *fragility.Analyzer,
	prices drepo.MarketDataSource,
	macro drepo.MarketDataSource,
	series drepo.SeriesStore,
	results drepo.ResultStore,
	cache drepo.ResultCache,
	alerts drepo.AlertPublisher,
	metrics drepo.Metrics,
	reports *report.Writer,
	l *logger.Logger,
) *MonitorUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &MonitorUseCase{
		cfg:      cfg,
		analyzer: analyzer,
		prices:   prices,
		macro:    macro,
		series:   series,
		results:  results,
		cache:    cache,
		alerts:   alerts,
		metrics:  metrics,
		reports:  reports,
		log:      l.Component("monitor"),
		now:      time.Now,
	}
}

// Sync fetches prices and macro indicators and stores them. An empty price
// table triggers a full backfill from StartDate. Macro failures are logged;
// price failures are returned.
func (uc *MonitorUseCase) Sync(ctx context.Context) (*SyncResult, error) {
	start := uc.now()
	count, err := uc.series.CountPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("count prices: %w", err)
	}

	res := &SyncResult{To: start}
	if count == 0 {
		res.Initial = true
		res.From = uc.cfg.StartDate
		uc.log.Info("no stored prices, backfilling", logger.Date("from", res.From))
	} else {
		res.From = util.DaysAgo(start, uc.cfg.UpdateDays)
		uc.log.Info("updating prices", logger.Int64("stored_rows", int64(count)), logger.Date("from", res.From))
	}

	var (
		wg               sync.WaitGroup
		priceObs         []models.Observation
		macroObs         []models.Observation
		priceErr, macErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		priceObs, priceErr = uc.prices.Fetch(ctx, res.From, res.To)
	}()
	if uc.macro != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			macroObs, macErr = uc.macro.Fetch(ctx, res.From, res.To)
		}()
	}
	wg.Wait()

	if priceErr != nil {
		uc.metrics.RecordError("sync_prices")
		return nil, fmt.Errorf("fetch prices from %s: %w", uc.prices.Name(), priceErr)
	}

	rows := make([]models.PriceRow, 0, len(priceObs))
	for _, o := range priceObs {
		if row, ok := models.PriceRowFrom(o); ok {
			rows = append(rows, row)
		}
	}
	if err := uc.series.SavePrices(ctx, rows); err != nil {
		uc.metrics.RecordError("store_prices")
		return nil, fmt.Errorf("save prices: %w", err)
	}
	res.PriceRows = len(rows)

	switch {
	case macErr != nil:
		uc.metrics.RecordError("sync_macro")
		uc.log.Warn("failed to fetch macro data", logger.String("source", uc.macro.Name()), logger.Error(macErr))
	case uc.macro != nil:
		mrows := models.MacroRowsFrom(macroObs)
		if err := uc.series.SaveMacro(ctx, mrows); err != nil {
			uc.metrics.RecordError("store_macro")
			uc.log.Warn("failed to save macro data", logger.Error(err))
		} else {
			res.MacroRows = len(mrows)
		}
	}

	uc.metrics.RecordLatency("sync", uc.now().Sub(start).Seconds())
	uc.log.Info("sync complete",
		logger.Int("price_rows", res.PriceRows),
		logger.Int("macro_rows", res.MacroRows),
		logger.Bool("initial", res.Initial))
	return res, nil
}

// Analyze runs the fragility analysis over the stored history, persists the
// record and publishes it. Cache, alert and report failures are logged and do
// not fail the run.
func (uc *MonitorUseCase) Analyze(ctx context.Context) (*models.AnalysisRecord, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer uc.running.Store(false)
	return uc.analyze(ctx)
}

func (uc *MonitorUseCase) analyze(ctx context.Context) (*models.AnalysisRecord, error) {
	start := uc.now()
	rows, err := uc.series.LatestPrices(ctx, uc.cfg.HistoryRows)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if len(rows) == 0 {
		uc.metrics.RecordError("analysis")
		return nil, ErrNoPriceData
	}

	macro, err := uc.series.LatestMacro(ctx)
	if err != nil {
		uc.log.Warn("no macro data available", logger.Error(err))
		macro = nil
	}

	in := buildInput(rows, macro)
	result, err := uc.analyzer.Analyze(in)
	if err != nil {
		uc.metrics.RecordError("analysis")
		return nil, fmt.Errorf("analyze %d rows: %w", len(rows), err)
	}

	rec := &models.AnalysisRecord{
		RunID:     uuid.NewString(),
		Date:      rows[len(rows)-1].Date,
		CreatedAt: start.UTC(),
		Analysis:  *result,
	}
	if err := uc.results.Save(ctx, rec); err != nil {
		uc.metrics.RecordError("store_result")
		return nil, fmt.Errorf("save result: %w", err)
	}
	uc.fanOut(ctx, rec)

	uc.metrics.RecordAnalysis(string(rec.Level()), rec.Score(), result.GoldSilverRatio.Z())
	for _, s := range result.CompositeSignals {
		uc.metrics.RecordSignal(string(s.Type), string(s.Severity))
	}
	uc.metrics.RecordLatency("analyze", uc.now().Sub(start).Seconds())

	uc.log.Info("analysis complete",
		logger.String("run_id", rec.RunID),
		logger.Date("date", rec.Date),
		logger.String("fragility_level", string(rec.Level())),
		logger.Int("fragility_score", rec.Score()),
		logger.Int("signals", len(result.CompositeSignals)))
	uc.log.Info(report.Summary(rec))
	return rec, nil
}

func (uc *MonitorUseCase) fanOut(ctx context.Context, rec *models.AnalysisRecord) {
	if uc.cache != nil {
		if err := uc.cache.SetLatest(ctx, rec); err != nil {
			uc.metrics.RecordError("cache")
			uc.log.Warn("failed to cache result", logger.Error(err))
		}
	}
	if uc.alerts != nil {
		if err := uc.alerts.PublishAnalysis(ctx, rec); err != nil {
			uc.metrics.RecordError("alerts")
			uc.log.Warn("failed to publish alerts", logger.String("run_id", rec.RunID), logger.Error(err))
		}
	}
	if uc.reports != nil {
		path, err := uc.reports.Save(rec)
		if err != nil {
			uc.metrics.RecordError("report")
			uc.log.Warn("failed to save report", logger.Error(err))
		} else {
			uc.log.Info("report saved", logger.String("path", path))
		}
	}
}

// RunDaily syncs then analyzes. A failed sync is logged and the analysis runs
// on whatever history is already stored.
func (uc *MonitorUseCase) RunDaily(ctx context.Context) (*models.AnalysisRecord, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer uc.running.Store(false)

	if _, err := uc.Sync(ctx); err != nil {
		uc.log.Error("sync failed, analyzing stored history", logger.Error(err))
	}
	return uc.analyze(ctx)
}

// buildInput splits stored rows into the three analysis series.
func buildInput(rows []models.PriceRow, macro map[string]float64) fragility.Input {
	in := fragility.Input{
		Ratio:  make(fragility.TimeSeries, len(rows)),
		Gold:   make(fragility.TimeSeries, len(rows)),
		Silver: make(fragility.TimeSeries, len(rows)),
		Macro:  macro,
	}
	for i, r := range rows {
		in.Ratio[i] = fragility.Point{Date: r.Date, Value: r.GoldSilverRatio}
		in.Gold[i] = fragility.Point{Date: r.Date, Value: r.GoldPrice}
		in.Silver[i] = fragility.Point{Date: r.Date, Value: r.SilverPrice}
	}
	return in
}
