package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"MetalPulse/internal/domain/models"
)

// ErrNotFound is returned by stores when nothing matches.
var ErrNotFound = errors.New("not found")

// MarketDataSource is the capability every price or macro provider exposes.
type MarketDataSource interface {
	Name() string
	Fetch(ctx context.Context, from, to time.Time) ([]models.Observation, error)
	Latest(ctx context.Context) (*models.Observation, error)
}

// SeriesStore persists daily prices and macro indicators.
type SeriesStore interface {
	SavePrices(ctx context.Context, rows []models.PriceRow) error
	SaveMacro(ctx context.Context, rows []models.MacroRow) error
	// LatestPrices returns the last n rows in ascending date order.
	LatestPrices(ctx context.Context, n int) ([]models.PriceRow, error)
	// LatestMacro returns the most recent value of every indicator.
	LatestMacro(ctx context.Context) (map[string]float64, error)
	CountPrices(ctx context.Context) (uint64, error)
	PricesBetween(ctx context.Context, from, to time.Time) ([]models.PriceRow, error)
	MacroBetween(ctx context.Context, from, to time.Time) ([]models.MacroRow, error)
}

// Maintainer exports, rotates and reports on stored data.
type Maintainer interface {
	Tables() []models.ManagedTable
	// ExportRows writes a CSV header line and every row of table dated before
	// cutoff to w. A zero cutoff exports the whole table.
	ExportRows(ctx context.Context, table string, before time.Time, w io.Writer) (uint64, error)
	// DeleteBefore removes rows of table dated before cutoff and returns how
	// many were scheduled for removal.
	DeleteBefore(ctx context.Context, table string, cutoff time.Time) (uint64, error)
	// Optimize merges parts so deleted and replaced rows are dropped from disk.
	Optimize(ctx context.Context, table string) error
	TableCounts(ctx context.Context) ([]models.TableCount, error)
}

// ResultStore persists analysis runs.
type ResultStore interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
	Latest(ctx context.Context) (*models.AnalysisRecord, error)
	Between(ctx context.Context, from, to time.Time, limit int) ([]models.AnalysisRecord, error)
}

// ResultCache holds the latest analysis for the read path.
type ResultCache interface {
	GetLatest(ctx context.Context) (*models.AnalysisRecord, error)
	SetLatest(ctx context.Context, rec *models.AnalysisRecord) error
}

// AlertPublisher fans analysis signals out to downstream consumers.
type AlertPublisher interface {
	PublishAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	Close() error
}

// MarketStream is a live quote feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordAnalysis(level string, score int, zscore float64)
	RecordSignal(signalType, severity string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
