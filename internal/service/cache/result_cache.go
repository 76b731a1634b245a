package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MetalPulse/internal/domain/models"
)

const latestResultKey = "metalpulse:analysis:latest"

// ResultCache keeps the latest analysis record as JSON in a BytesCache.
type ResultCache struct {
	store BytesCache
	ttl   time.Duration
}

func NewResultCache(store BytesCache, ttl time.Duration) *ResultCache {
	return &ResultCache{store: store, ttl: ttl}
}

// GetLatest returns ErrCacheMiss when nothing is cached.
func (c *ResultCache) GetLatest(ctx context.Context) (*models.AnalysisRecord, error) {
	b, ok, err := c.store.GetBytes(ctx, latestResultKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCacheMiss
	}
	var rec models.AnalysisRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &rec, nil
}

func (c *ResultCache) SetLatest(ctx context.Context, rec *models.AnalysisRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return c.store.SetBytes(ctx, latestResultKey, b, c.ttl)
}
