package usecase

import (
	"context"
	"fmt"
	"time"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/logger"
)

const maxHistoryLimit = 1000

// HistoryUseCase serves stored analysis runs.
type HistoryUseCase struct {
	results drepo.ResultStore
	cache   drepo.ResultCache
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewHistoryUseCase wires the read path. cache may be nil.
func NewHistoryUseCase(results drepo.ResultStore, cache drepo.ResultCache, metrics drepo.Metrics, l *logger.Logger) *HistoryUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &HistoryUseCase{results: results, cache: cache, metrics: metrics, log: l.Component("history")}
}

// Latest returns the newest record, preferring the cache. hit reports whether
// the cache served it.
func (uc *HistoryUseCase) Latest(ctx context.Context) (rec *models.AnalysisRecord, hit bool, err error) {
	if uc.cache != nil {
		if cached, cerr := uc.cache.GetLatest(ctx); cerr == nil {
			return cached, true, nil
		}
	}
	rec, err = uc.results.Latest(ctx)
	if err != nil {
		return nil, false, err
	}
	if uc.cache != nil {
		if err := uc.cache.SetLatest(ctx, rec); err != nil {
			uc.metrics.RecordError("cache")
			uc.log.Warn("failed to backfill cache", logger.String("run_id", rec.RunID), logger.Error(err))
		}
	}
	return rec, false, nil
}

// Results returns records dated in [from, to], newest first.
func (uc *HistoryUseCase) Results(ctx context.Context, from, to time.Time, limit int) ([]models.AnalysisRecord, error) {
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	recs, err := uc.results.Between(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	return recs, nil
}
