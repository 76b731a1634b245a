package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"MetalPulse/internal/domain/models"
	"MetalPulse/pkg/config"
	xhttp "MetalPulse/pkg/http"
	"MetalPulse/pkg/logger"
)

// latestWindow is how far back Latest looks for the most recent close.
const latestWindow = 7 * 24 * time.Hour

// YahooSource fetches daily gold and silver futures closes from the Yahoo
// Finance chart API and derives the gold/silver ratio.
type YahooSource struct {
	*remote
	gold   string
	silver string
	now    func() time.Time
}

// NewYahooSource builds the price source from data_sources.yahoo_finance.
func NewYahooSource(cfg *config.Config, l *logger.Logger, opts ...xhttp.ClientOption) *YahooSource {
	yc := cfg.DataSources.YahooFinance
	bc := BreakerConfig{
		MaxFailures: cfg.DataSources.Breaker.MaxFailures,
		OpenTimeout: cfg.DataSources.Breaker.OpenTimeout,
	}
	opts = append([]xhttp.ClientOption{xhttp.WithUserAgent(cfg.DataSources.UserAgent)}, opts...)
	return &YahooSource{
		remote: newRemote("yahoo_finance", yc.BaseURL, yc.Timeout, bc, l, opts...),
		gold:   yc.GoldSymbol,
		silver: yc.SilverSymbol,
		now:    time.Now,
	}
}

func (s *YahooSource) Name() string { return "Yahoo Finance" }

// Fetch returns one observation per trading day in [from, to] carrying
// gold_price, silver_price and gold_silver_ratio. Days where only one metal
// traded carry the other metal's previous close.
func (s *YahooSource) Fetch(ctx context.Context, from, to time.Time) ([]models.Observation, error) {
	cols := columns{}
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for col, symbol := range map[string]string{models.ColGoldPrice: s.gold, models.ColSilverPrice: s.silver} {
		wg.Add(1)
		go func(col, symbol string) {
			defer wg.Done()
			closes, err := s.closes(ctx, symbol, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for d, v := range closes {
				cols.set(col, d, v)
			}
		}(col, symbol)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	var out []models.Observation
	for _, o := range within(align(cols), from, to) {
		gold, okG := o.Values[models.ColGoldPrice]
		silver, okS := o.Values[models.ColSilverPrice]
		if !okG || !okS || silver == 0 {
			continue
		}
		o.Values[models.ColGoldSilverRatio] = gold / silver
		out = append(out, o)
	}
	s.log.Debug("fetched prices",
		logger.Date("from", from),
		logger.Date("to", to),
		logger.Int("rows", len(out)))
	return out, nil
}

// Latest returns the most recent trading day of the past week.
func (s *YahooSource) Latest(ctx context.Context) (*models.Observation, error) {
	end := s.now()
	obs, err := s.Fetch(ctx, end.Add(-latestWindow), end)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no prices in the last week", ErrSourceUnavailable)
	}
	last := obs[len(obs)-1]
	return &last, nil
}

// closes returns the daily close of symbol keyed by exchange-local day.
func (s *YahooSource) closes(ctx context.Context, symbol string, from, to time.Time) (map[time.Time]float64, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	// period2 is exclusive.
	q.Set("period2", strconv.FormatInt(to.Add(24*time.Hour).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	body, err := s.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return parseChart(body)
}

// parseChart reads chart.result[0] timestamps and closes. Null closes are
// skipped.
func parseChart(body []byte) (map[time.Time]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid chart payload", ErrSourceUnavailable)
	}
	if e := gjson.GetBytes(body, "chart.error.description"); e.Exists() && e.String() != "" {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, e.String())
	}
	res := gjson.GetBytes(body, "chart.result.0")
	if !res.Exists() {
		return nil, fmt.Errorf("%w: empty chart result", ErrSourceUnavailable)
	}
	offset := res.Get("meta.gmtoffset").Int()
	stamps := res.Get("timestamp").Array()
	closes := res.Get("indicators.quote.0.close").Array()

	out := make(map[time.Time]float64, len(stamps))
	for i, ts := range stamps {
		if i >= len(closes) || closes[i].Type != gjson.Number {
			continue
		}
		day := time.Unix(ts.Int()+offset, 0).UTC()
		out[time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)] = closes[i].Float()
	}
	return out, nil
}
