package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MetalPulse/internal/datasource"
	"MetalPulse/internal/domain/repository"
	"MetalPulse/internal/fragility"
	"MetalPulse/internal/handler/api"
	internalrepo "MetalPulse/internal/repository"
	"MetalPulse/internal/report"
	"MetalPulse/internal/scheduler"
	icache "MetalPulse/internal/service/cache"
	"MetalPulse/internal/service/finnhub"
	"MetalPulse/internal/usecase"
	pkgch "MetalPulse/pkg/clickhouse"
	"MetalPulse/pkg/config"
	xhttp "MetalPulse/pkg/http"
	pkgkafka "MetalPulse/pkg/kafka"
	applogger "MetalPulse/pkg/logger"
	"MetalPulse/pkg/metrics"
	"MetalPulse/pkg/server"
)

// PriceSource and MacroSource let wire tell the two data sources apart.
type (
	PriceSource repository.MarketDataSource
	MacroSource repository.MarketDataSource
)

// Jobs bundles the use cases the one-shot CLI commands need.
type Jobs struct {
	Monitor     *usecase.MonitorUseCase
	Maintenance *usecase.MaintenanceUseCase
	Log         *applogger.Logger
}

// ProvideLogger builds the process logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideSeriesStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHSeriesStore {
	return internalrepo.NewCHSeriesStore(ch.DB(), l)
}

func ProvideResultStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHResultStore {
	return internalrepo.NewCHResultStore(ch.DB(), l)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideAlertPublisher also routes collected warn/error logs to Kafka when a
// collect topic is configured. The collector is flushed before the producer closes.
func ProvideAlertPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) (repository.AlertPublisher, func()) {
	if producer == nil {
		return nil, func() {}
	}
	cleanup := func() {}
	if cfg.Logging.CollectTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Logging.CollectInterval,
			Topic:        cfg.Logging.CollectTopic,
			Publisher:    producer,
		})
		cleanup = l.RemoveCollector
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic), cleanup
}

// ProvideResultCache uses Redis when enabled, otherwise an in-process TTL cache.
func ProvideResultCache(cfg *config.Config, l *applogger.Logger) (repository.ResultCache, func()) {
	if !cfg.Redis.Enabled {
		return icache.NewResultCache(icache.NewTTLCache(), cfg.Redis.ResultTTL), func() {}
	}
	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unreachable, results will be read from clickhouse", applogger.Error(err))
	}
	return icache.NewResultCache(rc, cfg.Redis.ResultTTL), func() { _ = rc.Close() }
}

// ProvidePriceSource falls back to replaying stored prices when Yahoo is disabled.
func ProvidePriceSource(cfg *config.Config, series *internalrepo.CHSeriesStore, l *applogger.Logger) PriceSource {
	if !cfg.DataSources.YahooFinance.Enabled {
		l.Warn("yahoo finance disabled, replaying stored prices")
		return datasource.NewStorePriceSource(series)
	}
	return datasource.NewYahooSource(cfg, l)
}

// ProvideMacroSource returns nil when FRED is disabled or has no API key.
func ProvideMacroSource(cfg *config.Config, l *applogger.Logger) MacroSource {
	if !cfg.DataSources.FRED.Enabled {
		return nil
	}
	src, err := datasource.NewFREDSource(cfg, l)
	if err != nil {
		if errors.Is(err, datasource.ErrMissingAPIKey) {
			l.Warn("FRED disabled: no api key configured")
		} else {
			l.Warn("FRED disabled", applogger.Error(err))
		}
		return nil
	}
	return src
}

func ProvideAnalyzer(cfg *config.Config) (*fragility.Analyzer, error) {
	return fragility.NewAnalyzer(cfg.Thresholds())
}

// ProvideReportWriter returns nil when reports are disabled.
func ProvideReportWriter(cfg *config.Config) *report.Writer {
	if !cfg.Reports.Enabled {
		return nil
	}
	return report.NewWriter(cfg.Reports.OutputDir)
}

func ProvideMonitor(
	cfg *config.Config,
	analyzer *fragility.Analyzer,
	prices PriceSource,
	macro MacroSource,
	series *internalrepo.CHSeriesStore,
	results *internalrepo.CHResultStore,
	cache repository.ResultCache,
	alerts repository.AlertPublisher,
	m repository.Metrics,
	reports *report.Writer,
	l *applogger.Logger,
) *usecase.MonitorUseCase {
	var macroSrc repository.MarketDataSource
	if macro != nil {
		macroSrc = macro
	}
	return usecase.NewMonitorUseCase(
		usecase.MonitorConfig{
			HistoryRows: cfg.Analysis.HistoryRows,
			StartDate:   cfg.StartDate(),
			UpdateDays:  cfg.HistoricalData.UpdateDays,
		},
		analyzer, prices, macroSrc, series, results, cache, alerts, m, reports, l,
	)
}

func ProvideMaintenance(cfg *config.Config, series *internalrepo.CHSeriesStore, m repository.Metrics, l *applogger.Logger) *usecase.MaintenanceUseCase {
	mc := cfg.Maintenance
	return usecase.NewMaintenanceUseCase(usecase.MaintenanceConfig{
		Retention:         usecase.RetentionPolicy{SeriesDays: mc.RetentionDays, AnalysisDays: mc.AnalysisRetentionDays},
		ArchiveDir:        mc.ArchiveDir,
		ArchiveMaxAgeDays: mc.ArchiveMaxAgeDays,
		BackupDir:         mc.BackupDir,
		KeepBackups:       mc.KeepBackups,
	}, series, m, l)
}

func ProvideHistory(results *internalrepo.CHResultStore, cache repository.ResultCache, m repository.Metrics, l *applogger.Logger) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(results, cache, m, l)
}

// ProvideQuoteTracker returns nil when the Finnhub feed is disabled.
func ProvideQuoteTracker(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.QuoteTracker {
	fc := cfg.Finnhub
	if !fc.Enabled || fc.APIKey == "" {
		return nil
	}
	stream := finnhub.New(fc.APIKey, fc.WebSocketURL, []string{fc.GoldSymbol, fc.SilverSymbol},
		fc.ReconnectDelay, fc.PingInterval, l)
	return usecase.NewQuoteTracker(stream, m, fc.GoldSymbol, fc.SilverSymbol, l)
}

func ProvideScheduler(cfg *config.Config, monitor *usecase.MonitorUseCase, maint *usecase.MaintenanceUseCase, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(monitor, maint, scheduler.Config{
		AnalysisSchedule:    cfg.Analysis.Schedule,
		MaintenanceSchedule: cfg.Maintenance.Schedule,
		BackupSchedule:      cfg.Maintenance.BackupSchedule,
		Retention:           maint.Policy(),
		Timeout:             cfg.Analysis.Timeout,
	}, l)
}

// ProvideHTTPServer registers the API and health routes.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	monitor *usecase.MonitorUseCase,
	history *usecase.HistoryUseCase,
	tracker *usecase.QuoteTracker,
	ch *pkgch.Client,
) *xhttp.Server {
	var quotes api.QuoteSource
	if tracker != nil {
		quotes = tracker
	}
	analysis := api.NewAnalysisHandler(l, monitor, history, quotes, api.RunLimit{
		Capacity: cfg.Server.RateLimit.Capacity,
		Refill:   cfg.Server.RateLimit.Refill,
		Timeout:  cfg.Analysis.Timeout,
	})
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l,
		[]xhttp.Handler{analysis, api.NewHealthHandler(ch)},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	tracker *usecase.QuoteTracker,
) *server.App {
	return server.New(l, httpServer, sched, tracker,
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithRunOnStart(cfg.Analysis.RunOnStart),
	)
}

func ProvideJobs(monitor *usecase.MonitorUseCase, maint *usecase.MaintenanceUseCase, l *applogger.Logger) *Jobs {
	return &Jobs{Monitor: monitor, Maintenance: maint, Log: l}
}
