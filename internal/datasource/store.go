package datasource

import (
	"context"
	"fmt"
	"time"

	"MetalPulse/internal/domain/models"
	"MetalPulse/internal/domain/repository"
)

// StoreSource replays previously synced series from the store, so analysis
// can run against stored history without touching the network.
type StoreSource struct {
	store repository.SeriesStore
	macro bool
}

// NewStorePriceSource replays price_data.
func NewStorePriceSource(store repository.SeriesStore) *StoreSource {
	return &StoreSource{store: store}
}

// NewStoreMacroSource replays macro_indicators.
func NewStoreMacroSource(store repository.SeriesStore) *StoreSource {
	return &StoreSource{store: store, macro: true}
}

func (s *StoreSource) Name() string {
	if s.macro {
		return "store:macro"
	}
	return "store:prices"
}

func (s *StoreSource) Fetch(ctx context.Context, from, to time.Time) ([]models.Observation, error) {
	if s.macro {
		rows, err := s.store.MacroBetween(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("replay macro: %w", err)
		}
		cols := columns{}
		for _, r := range rows {
			cols.set(r.Name, r.Date, r.Value)
		}
		return align(cols), nil
	}

	rows, err := s.store.PricesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("replay prices: %w", err)
	}
	out := make([]models.Observation, 0, len(rows))
	for _, r := range rows {
		out = append(out, priceObservation(r))
	}
	return out, nil
}

func (s *StoreSource) Latest(ctx context.Context) (*models.Observation, error) {
	if s.macro {
		vals, err := s.store.LatestMacro(ctx)
		if err != nil {
			return nil, fmt.Errorf("replay latest macro: %w", err)
		}
		if len(vals) == 0 {
			return nil, repository.ErrNotFound
		}
		return &models.Observation{Values: vals}, nil
	}

	rows, err := s.store.LatestPrices(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("replay latest prices: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	o := priceObservation(rows[0])
	return &o, nil
}

func priceObservation(r models.PriceRow) models.Observation {
	return models.Observation{
		Date: r.Date,
		Values: map[string]float64{
			models.ColGoldPrice:       r.GoldPrice,
			models.ColSilverPrice:     r.SilverPrice,
			models.ColGoldSilverRatio: r.GoldSilverRatio,
		},
	}
}
