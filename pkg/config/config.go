package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MetalPulse/internal/fragility"
	"MetalPulse/pkg/util"
)

// DateLayout is the calendar-day format used across configuration.
const DateLayout = "2006-01-02"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			Capacity int           `yaml:"capacity" default:"3" validate:"min=1"`
			Refill   time.Duration `yaml:"refill" default:"20s"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level           string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format          string        `yaml:"format" default:"json" validate:"oneof=json console"`
		Output          string        `yaml:"output" default:"stdout"`
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"logging"`
	FragilityThresholds struct {
		GoldSilverRatio struct {
			CriticalHigh float64 `yaml:"critical_high" default:"85"`
			High         float64 `yaml:"high" default:"80"`
			Low          float64 `yaml:"low" default:"50"`
			CriticalLow  float64 `yaml:"critical_low" default:"45"`
		} `yaml:"gold_silver_ratio"`
		ZScore struct {
			Extreme  float64 `yaml:"extreme" default:"2.0"`
			High     float64 `yaml:"high" default:"1.5"`
			Moderate float64 `yaml:"moderate" default:"1.0"`
		} `yaml:"zscore"`
		PriceChange struct {
			DailyExtreme  float64 `yaml:"daily_extreme" default:"5.0"`
			WeeklyExtreme float64 `yaml:"weekly_extreme" default:"10.0"`
		} `yaml:"price_change"`
	} `yaml:"fragility_thresholds"`
	Statistics struct {
		LookbackPeriod int `yaml:"lookback_period" default:"252" validate:"min=2"`
		ZScoreWindow   int `yaml:"zscore_window" default:"252" validate:"min=2"`
	} `yaml:"statistics"`
	Analysis struct {
		HistoryRows int           `yaml:"history_rows" default:"300" validate:"min=21"`
		Schedule    string        `yaml:"schedule" default:"0 30 7 * * *"`
		Timeout     time.Duration `yaml:"timeout" default:"2m"`
		RunOnStart  bool          `yaml:"run_on_start"`
	} `yaml:"analysis"`
	HistoricalData struct {
		StartDate  string `yaml:"start_date" default:"1971-01-01" validate:"datetime=2006-01-02"`
		UpdateDays int    `yaml:"update_days" default:"7" validate:"min=1"`
	} `yaml:"historical_data"`
	DataSources struct {
		UserAgent    string `yaml:"user_agent" default:"Mozilla/5.0 (compatible; MetalPulse/1.0)"`
		YahooFinance struct {
			Enabled      bool          `yaml:"enabled" default:"true"`
			BaseURL      string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
			GoldSymbol   string        `yaml:"gold_symbol" default:"GC=F" validate:"required"`
			SilverSymbol string        `yaml:"silver_symbol" default:"SI=F" validate:"required"`
			Timeout      time.Duration `yaml:"timeout" default:"30s"`
		} `yaml:"yahoo_finance"`
		FRED struct {
			Enabled bool          `yaml:"enabled" default:"true"`
			APIKey  string        `yaml:"api_key"`
			BaseURL string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"url"`
			Timeout time.Duration `yaml:"timeout" default:"30s"`
			// Indicators maps result names to FRED series ids.
			Indicators map[string]string `yaml:"indicators"`
		} `yaml:"fred"`
		Breaker struct {
			MaxFailures uint32        `yaml:"max_failures" default:"3" validate:"min=1"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"60s"`
		} `yaml:"breaker"`
	} `yaml:"data_sources"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost" validate:"required"`
		Port         int           `yaml:"port" default:"9000" validate:"min=1,max=65535"`
		Database     string        `yaml:"database" default:"metalpulse" validate:"required"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled          bool          `yaml:"enabled"`
		Brokers          []string      `yaml:"brokers" validate:"required_if=Enabled true"`
		AlertTopic       string        `yaml:"alert_topic" default:"metalpulse.alerts"`
		RequiredAcks     int           `yaml:"required_acks" default:"-1"`
		Compression      string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts      int           `yaml:"max_attempts" default:"3"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		BatchTimeout     time.Duration `yaml:"batch_timeout" default:"100ms"`
		AutoCreateTopics bool          `yaml:"auto_create_topics"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		ResultTTL time.Duration `yaml:"result_ttl" default:"24h"`
	} `yaml:"redis"`
	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		GoldSymbol     string        `yaml:"gold_symbol" default:"OANDA:XAU_USD"`
		SilverSymbol   string        `yaml:"silver_symbol" default:"OANDA:XAG_USD"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"finnhub"`
	Reports struct {
		Enabled   bool   `yaml:"enabled" default:"true"`
		OutputDir string `yaml:"output_dir" default:"reports"`
	} `yaml:"reports"`
	Maintenance struct {
		// RetentionDays applies to price_data and macro_indicators.
		RetentionDays         int    `yaml:"retention_days" default:"730" validate:"min=1"`
		AnalysisRetentionDays int    `yaml:"analysis_retention_days" default:"90" validate:"min=1"`
		ArchiveDir            string `yaml:"archive_dir" default:"data/archives" validate:"required"`
		ArchiveMaxAgeDays     int    `yaml:"archive_max_age_days" default:"3650" validate:"min=1"`
		BackupDir             string `yaml:"backup_dir" default:"data/backups" validate:"required"`
		KeepBackups           int    `yaml:"keep_backups" default:"7" validate:"min=1"`
		Schedule              string `yaml:"schedule" default:"0 0 3 1 * *"`
		BackupSchedule        string `yaml:"backup_schedule" default:"0 0 2 * * 0"`
	} `yaml:"maintenance"`
}

// DefaultIndicators are the FRED series fetched when none are configured.
func DefaultIndicators() map[string]string {
	return map[string]string{
		"treasury_10y":  "DGS10",
		"breakeven_10y": "T10YIE",
		"dollar_index":  "DTWEXBGS",
		"vix":           "VIXCLS",
	}
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.DataSources.FRED.Indicators = DefaultIndicators()
	return &c, nil
}

// Load reads and parses a YAML configuration file. Defaults are applied first so the
// file only needs to carry overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load for an in-memory document.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.DataSources.FRED.Indicators) == 0 {
		c.DataSources.FRED.Indicators = DefaultIndicators()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and addresses with
// environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the given lookup (os.Getenv in production).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("METALPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FRED_API_KEY"); v != "" {
		c.DataSources.FRED.APIKey = v
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks field ranges, then the threshold ordering invariants.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.Finnhub.Enabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.AlertTopic == "" {
		return fmt.Errorf("kafka.alert_topic is required when kafka is enabled")
	}
	return nil
}

// StartDate parses historical_data.start_date.
func (c *Config) StartDate() time.Time {
	t, err := time.Parse(DateLayout, c.HistoricalData.StartDate)
	if err != nil {
		// validated at load time
		return time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Thresholds maps the YAML sections onto the analyzer configuration. An
// explicit zero falls back to the documented default.
func (c *Config) Thresholds() fragility.Thresholds {
	ft := c.FragilityThresholds
	return fragility.Thresholds{
		Ratio: fragility.RatioThresholds{
			CriticalHigh: ft.GoldSilverRatio.CriticalHigh,
			High:         ft.GoldSilverRatio.High,
			Low:          ft.GoldSilverRatio.Low,
			CriticalLow:  ft.GoldSilverRatio.CriticalLow,
		},
		ZScore: fragility.ZScoreThresholds{
			Extreme:  ft.ZScore.Extreme,
			High:     ft.ZScore.High,
			Moderate: ft.ZScore.Moderate,
		},
		Statistics: fragility.StatisticsWindows{
			LookbackPeriod: c.Statistics.LookbackPeriod,
			ZScoreWindow:   c.Statistics.ZScoreWindow,
		},
		PriceChange: fragility.PriceChangeThresholds{
			DailyExtreme:  ft.PriceChange.DailyExtreme,
			WeeklyExtreme: ft.PriceChange.WeeklyExtreme,
		},
	}.WithDefaults()
}
