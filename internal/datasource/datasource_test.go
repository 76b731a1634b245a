package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MetalPulse/internal/domain/models"
	"MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/config"
	xhttp "MetalPulse/pkg/http"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// chartJSON renders a Yahoo chart payload; stamps are exchange-local
// midnights at UTC-4. A nil close is emitted as null.
func chartJSON(days []string, closes []*float64) string {
	var ts, cs []string
	for i, d := range days {
		ts = append(ts, fmt.Sprint(day(d).Add(4*time.Hour).Unix()))
		if closes[i] == nil {
			cs = append(cs, "null")
		} else {
			cs = append(cs, fmt.Sprint(*closes[i]))
		}
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"gmtoffset":-14400},"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(ts, ","), strings.Join(cs, ","))
}

func p(v float64) *float64 { return &v }

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.DataSources.YahooFinance.BaseURL = baseURL
	cfg.DataSources.FRED.BaseURL = baseURL
	cfg.DataSources.FRED.APIKey = "test-key"
	cfg.DataSources.YahooFinance.Timeout = 2 * time.Second
	cfg.DataSources.FRED.Timeout = 2 * time.Second
	return cfg
}

func TestSourcesSendConfiguredUserAgent(t *testing.T) {
	var (
		mu     sync.Mutex
		agents []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		if strings.HasPrefix(r.URL.Path, "/v8/finance/chart/") {
			fmt.Fprint(w, chartJSON([]string{"2024-01-02"}, []*float64{p(2000)}))
			return
		}
		fmt.Fprint(w, `{"observations":[{"date":"2024-01-02","value":"4.1"}]}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.DataSources.UserAgent = "MetalPulse-test/2.0"
	cfg.DataSources.FRED.Indicators = map[string]string{"treasury_10y": "DGS10"}

	_, err := NewYahooSource(cfg, nil, xhttp.WithHTTPClient(srv.Client())).Fetch(context.Background(), day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	fred, err := NewFREDSource(cfg, nil, xhttp.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = fred.Fetch(context.Background(), day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, agents, 3)
	for _, ua := range agents {
		assert.Equal(t, "MetalPulse-test/2.0", ua)
	}
}

func TestYahooSource_FetchAlignsAndFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		switch r.URL.Path {
		case "/v8/finance/chart/GC=F":
			fmt.Fprint(w, chartJSON([]string{"2024-01-02", "2024-01-03", "2024-01-04"}, []*float64{p(2000), p(2030), p(2060)}))
		case "/v8/finance/chart/SI=F":
			fmt.Fprint(w, chartJSON([]string{"2024-01-02", "2024-01-03", "2024-01-04"}, []*float64{p(25), nil, p(24)}))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewYahooSource(testConfig(t, srv.URL), nil)
	obs, err := src.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, day("2024-01-02"), obs[0].Date)
	assert.InDelta(t, 80.0, obs[0].Values[models.ColGoldSilverRatio], 1e-9)
	// silver missing on the 3rd carries the 2nd's close
	assert.InDelta(t, 25.0, obs[1].Values[models.ColSilverPrice], 1e-9)
	assert.InDelta(t, 81.2, obs[1].Values[models.ColGoldSilverRatio], 1e-9)
	assert.InDelta(t, 2060.0/24.0, obs[2].Values[models.ColGoldSilverRatio], 1e-9)

	row, ok := models.PriceRowFrom(obs[2])
	require.True(t, ok)
	assert.InDelta(t, 24.0, row.SilverPrice, 1e-9)
}

func TestYahooSource_Latest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON([]string{"2024-03-04", "2024-03-05"}, []*float64{p(30), p(31)}))
	}))
	defer srv.Close()

	src := NewYahooSource(testConfig(t, srv.URL), nil)
	src.now = func() time.Time { return day("2024-03-06") }
	o, err := src.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-05"), o.Date)
	assert.InDelta(t, 1.0, o.Values[models.ColGoldSilverRatio], 1e-9)
}

func TestYahooSource_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	src := NewYahooSource(testConfig(t, srv.URL), nil)
	_, err := src.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "delisted")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.DataSources.Breaker.MaxFailures = 2
	src := NewYahooSource(cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := src.closes(context.Background(), "GC=F", day("2024-01-01"), day("2024-01-02"))
		require.ErrorIs(t, err, ErrSourceUnavailable)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "open", src.breaker.State())

	_, err := src.closes(context.Background(), "GC=F", day("2024-01-01"), day("2024-01-02"))
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not reach upstream")
}

func TestFREDSource_FetchDerivesRealRate(t *testing.T) {
	payloads := map[string]string{
		"DGS10":    `{"observations":[{"date":"2024-01-02","value":"4.00"},{"date":"2024-01-03","value":"."},{"date":"2024-01-04","value":"4.10"}]}`,
		"T10YIE":   `{"observations":[{"date":"2024-01-02","value":"2.25"},{"date":"2024-01-03","value":"2.30"},{"date":"2024-01-04","value":"2.20"}]}`,
		"DTWEXBGS": `{"error_code":400,"error_message":"Bad Request. The series does not exist."}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("file_type"))
		body, ok := payloads[r.URL.Query().Get("series_id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.DataSources.FRED.Indicators = map[string]string{
		"treasury_10y":  "DGS10",
		"breakeven_10y": "T10YIE",
		"dollar_index":  "DTWEXBGS",
	}
	src, err := NewFREDSource(cfg, nil)
	require.NoError(t, err)

	obs, err := src.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.InDelta(t, 1.75, obs[0].Values[ColRealRate], 1e-9)
	// missing treasury value carries forward
	assert.InDelta(t, 4.00, obs[1].Values[ColTreasury10Y], 1e-9)
	assert.InDelta(t, 1.70, obs[1].Values[ColRealRate], 1e-9)
	assert.InDelta(t, 1.90, obs[2].Values[ColRealRate], 1e-9)
	_, hasDollar := obs[2].Values["dollar_index"]
	assert.False(t, hasDollar)
}

func TestFREDSource_AllIndicatorsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_message":"bad key"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.DataSources.FRED.Indicators = map[string]string{"vix": "VIXCLS"}
	src, err := NewFREDSource(cfg, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewFREDSource_RequiresKey(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	_, err = NewFREDSource(cfg, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRealRate_TIPSFallback(t *testing.T) {
	v, ok := realRate(map[string]float64{ColTIPS10Y: 1.8})
	require.True(t, ok)
	assert.Equal(t, 1.8, v)

	_, ok = realRate(map[string]float64{ColTreasury10Y: 4})
	assert.False(t, ok)
}

func TestAlign_LeadingGapStaysEmpty(t *testing.T) {
	cols := columns{}
	cols.set("a", day("2024-01-01"), 1)
	cols.set("b", day("2024-01-02"), 2)
	cols.set("a", day("2024-01-03"), 3)

	obs := align(cols)
	require.Len(t, obs, 3)
	_, hasB := obs[0].Values["b"]
	assert.False(t, hasB)
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, obs[1].Values)
	assert.Equal(t, map[string]float64{"a": 3, "b": 2}, obs[2].Values)
}

type fakeSeriesStore struct {
	repository.SeriesStore
	prices []models.PriceRow
	macro  []models.MacroRow
}

func (f *fakeSeriesStore) PricesBetween(_ context.Context, _, _ time.Time) ([]models.PriceRow, error) {
	return f.prices, nil
}

func (f *fakeSeriesStore) MacroBetween(_ context.Context, _, _ time.Time) ([]models.MacroRow, error) {
	return f.macro, nil
}

func (f *fakeSeriesStore) LatestPrices(_ context.Context, n int) ([]models.PriceRow, error) {
	if n > len(f.prices) {
		n = len(f.prices)
	}
	return f.prices[len(f.prices)-n:], nil
}

func (f *fakeSeriesStore) LatestMacro(context.Context) (map[string]float64, error) {
	return nil, errors.New("boom")
}

func TestStoreSource_Replay(t *testing.T) {
	store := &fakeSeriesStore{
		prices: []models.PriceRow{
			{Date: day("2024-01-02"), GoldPrice: 2000, SilverPrice: 25, GoldSilverRatio: 80},
			{Date: day("2024-01-03"), GoldPrice: 2100, SilverPrice: 25, GoldSilverRatio: 84},
		},
		macro: []models.MacroRow{
			{Date: day("2024-01-02"), Name: "vix", Value: 13},
			{Date: day("2024-01-03"), Name: "treasury_10y", Value: 4},
		},
	}

	prices := NewStorePriceSource(store)
	obs, err := prices.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 84.0, obs[1].Values[models.ColGoldSilverRatio])

	last, err := prices.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-03"), last.Date)

	macro := NewStoreMacroSource(store)
	mobs, err := macro.Fetch(context.Background(), day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, mobs, 2)
	assert.Equal(t, map[string]float64{"vix": 13, "treasury_10y": 4}, mobs[1].Values)

	_, err = macro.Latest(context.Background())
	assert.Error(t, err)
}
