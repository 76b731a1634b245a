package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"MetalPulse/internal/domain/models"
	"MetalPulse/pkg/config"
	xhttp "MetalPulse/pkg/http"
	"MetalPulse/pkg/logger"
	"MetalPulse/pkg/util"
)

// ErrMissingAPIKey is returned when FRED is configured without a key.
var ErrMissingAPIKey = errors.New("fred api key is required")

// Derived and well-known macro column names.
const (
	ColRealRate     = "real_rate"
	ColTreasury10Y  = "treasury_10y"
	ColBreakeven10Y = "breakeven_10y"
	ColTIPS10Y      = "tips_10y"
)

// fredLatestWindow covers monthly series when looking up the latest value.
const fredLatestWindow = 60 * 24 * time.Hour

// FREDSource fetches macro indicators from the FRED observations API.
type FREDSource struct {
	*remote
	apiKey     string
	indicators map[string]string
	now        func() time.Time
}

// NewFREDSource builds the macro source from data_sources.fred.
func NewFREDSource(cfg *config.Config, l *logger.Logger, opts ...xhttp.ClientOption) (*FREDSource, error) {
	fc := cfg.DataSources.FRED
	if fc.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	indicators := fc.Indicators
	if len(indicators) == 0 {
		indicators = config.DefaultIndicators()
	}
	bc := BreakerConfig{
		MaxFailures: cfg.DataSources.Breaker.MaxFailures,
		OpenTimeout: cfg.DataSources.Breaker.OpenTimeout,
	}
	opts = append([]xhttp.ClientOption{xhttp.WithUserAgent(cfg.DataSources.UserAgent)}, opts...)
	return &FREDSource{
		remote:     newRemote("fred", fc.BaseURL, fc.Timeout, bc, l, opts...),
		apiKey:     fc.APIKey,
		indicators: indicators,
		now:        time.Now,
	}, nil
}

func (s *FREDSource) Name() string { return "FRED" }

// Fetch returns the configured indicators aligned by date and forward-filled,
// plus real_rate where it can be derived. A failing indicator is logged and
// skipped; Fetch fails only when nothing could be retrieved.
func (s *FREDSource) Fetch(ctx context.Context, from, to time.Time) ([]models.Observation, error) {
	names := make([]string, 0, len(s.indicators))
	for name := range s.indicators {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := columns{}
	var lastErr error
	for _, name := range names {
		seriesID := s.indicators[name]
		vals, err := s.series(ctx, seriesID, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.log.Warn("failed to fetch indicator",
				logger.String("indicator", name),
				logger.String("series_id", seriesID),
				logger.Error(err))
			continue
		}
		for d, v := range vals {
			cols.set(name, d, v)
		}
	}
	if len(cols) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no fred data could be retrieved: %w", lastErr)
		}
		return nil, fmt.Errorf("%w: no fred data could be retrieved", ErrSourceUnavailable)
	}

	obs := align(cols)
	for _, o := range obs {
		if rr, ok := realRate(o.Values); ok {
			o.Values[ColRealRate] = rr
		}
	}
	return obs, nil
}

// Latest returns the most recent forward-filled row.
func (s *FREDSource) Latest(ctx context.Context) (*models.Observation, error) {
	end := s.now()
	obs, err := s.Fetch(ctx, end.Add(-fredLatestWindow), end)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no recent fred observations", ErrSourceUnavailable)
	}
	last := obs[len(obs)-1]
	return &last, nil
}

func (s *FREDSource) series(ctx context.Context, seriesID string, from, to time.Time) (map[time.Time]float64, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", s.apiKey)
	q.Set("file_type", "json")
	q.Set("observation_start", util.FormatDate(from))
	q.Set("observation_end", util.FormatDate(to))

	body, err := s.get(ctx, "/series/observations", q)
	if err != nil {
		return nil, err
	}
	return parseObservations(body)
}

// parseObservations reads observations[].{date,value}. FRED marks missing
// values with ".".
func parseObservations(body []byte) (map[time.Time]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid observations payload", ErrSourceUnavailable)
	}
	if msg := gjson.GetBytes(body, "error_message"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, msg.String())
	}
	items := gjson.GetBytes(body, "observations")
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: observations missing", ErrSourceUnavailable)
	}
	out := make(map[time.Time]float64)
	for _, it := range items.Array() {
		raw := it.Get("value").String()
		if raw == "." || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		d, err := time.Parse(util.DateLayout, it.Get("date").String())
		if err != nil {
			continue
		}
		out[d] = v
	}
	return out, nil
}

// realRate is the 10y treasury yield less 10y breakeven inflation, or the
// 10y TIPS yield when the pair is unavailable.
func realRate(vals map[string]float64) (float64, bool) {
	t, okT := vals[ColTreasury10Y]
	b, okB := vals[ColBreakeven10Y]
	if okT && okB {
		return t - b, true
	}
	if tips, ok := vals[ColTIPS10Y]; ok {
		return tips, true
	}
	return 0, false
}
