package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MetalPulse/internal/domain/models"
	domrepo "MetalPulse/internal/domain/repository"
	applogger "MetalPulse/pkg/logger"
)

// CHResultStore implements ResultStore on the analysis_results table. The full
// result is kept as JSON; level, score and ratio statistics are denormalized for
// queries.
type CHResultStore struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)

func NewCHResultStore(db *sql.DB, l *applogger.Logger) *CHResultStore {
	return &CHResultStore{db: db, l: l.Component("result_store")}
}

func (s *CHResultStore) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	payload, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	ratio := rec.Analysis.GoldSilverRatio
	const q = `
        INSERT INTO analysis_results
            (date, run_id, fragility_level, fragility_score, ratio_zscore, ratio_percentile, analysis_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, q,
		rec.Date,
		rec.RunID,
		string(rec.Analysis.RatioFragility),
		uint8(rec.Analysis.FragilityScore),
		ratio.ZScore,
		ratio.Percentile,
		string(payload),
		rec.CreatedAt,
	)
	if err != nil {
		s.l.Error("save analysis failed", applogger.String("run_id", rec.RunID), applogger.Error(err))
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// Latest returns ErrNotFound when no run has been stored.
func (s *CHResultStore) Latest(ctx context.Context) (*models.AnalysisRecord, error) {
	const q = `
        SELECT date, run_id, analysis_json, created_at
        FROM analysis_results FINAL
        ORDER BY date DESC, created_at DESC
        LIMIT 1
    `
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	return rec, err
}

// Between returns runs dated within [from, to], newest first.
func (s *CHResultStore) Between(ctx context.Context, from, to time.Time, limit int) ([]models.AnalysisRecord, error) {
	const q = `
        SELECT date, run_id, analysis_json, created_at
        FROM analysis_results FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis history: %w", err)
	}
	defer rows.Close()

	out := make([]models.AnalysisRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.AnalysisRecord, error) {
	var (
		rec     models.AnalysisRecord
		payload string
	)
	if err := row.Scan(&rec.Date, &rec.RunID, &payload, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", rec.RunID, err)
	}
	return &rec, nil
}
