package models

import (
	"time"

	"MetalPulse/internal/fragility"
)

// AnalysisRecord is one persisted analysis run.
type AnalysisRecord struct {
	RunID     string                   `json:"run_id"`
	Date      time.Time                `json:"date"`
	CreatedAt time.Time                `json:"created_at"`
	Analysis  fragility.AnalysisResult `json:"analysis"`
}

// Level is a shortcut for the ratio fragility level.
func (r *AnalysisRecord) Level() fragility.Level { return r.Analysis.RatioFragility }

// Score is a shortcut for the composite fragility score.
func (r *AnalysisRecord) Score() int { return r.Analysis.FragilityScore }

// AlertMessage is what the alert topic carries for each composite signal.
type AlertMessage struct {
	RunID          string          `json:"run_id"`
	Date           string          `json:"date"`
	Type           string          `json:"type"`
	Severity       fragility.Level `json:"severity"`
	Message        string          `json:"message"`
	Ratio          float64         `json:"gold_silver_ratio"`
	FragilityLevel fragility.Level `json:"fragility_level"`
	FragilityScore int             `json:"fragility_score"`
}

// SummaryType tags the once-per-run summary alert.
const SummaryType = "ANALYSIS_SUMMARY"
