package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analysisRuns   *prometheus.CounterVec
	fragilityScore prometheus.Gauge
	ratioZScore    prometheus.Gauge
	signalsTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder on reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analysisRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metalpulse_analysis_runs_total",
				Help: "Completed analysis runs by fragility level",
			},
			[]string{"level"},
		),
		fragilityScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "metalpulse_fragility_score",
			Help: "Composite fragility score of the latest run (0-100)",
		}),
		ratioZScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "metalpulse_ratio_zscore",
			Help: "Gold/silver ratio z-score of the latest run",
		}),
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metalpulse_signals_total",
				Help: "Composite signals emitted",
			},
			[]string{"type", "severity"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metalpulse_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metalpulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metalpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis records one completed run.
func (r *Recorder) RecordAnalysis(level string, score int, zscore float64) {
	r.analysisRuns.WithLabelValues(level).Inc()
	r.fragilityScore.Set(float64(score))
	r.ratioZScore.Set(zscore)
}

func (r *Recorder) RecordSignal(signalType, severity string) {
	r.signalsTotal.WithLabelValues(signalType, severity).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
