package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metalpulse",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metalpulse",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metalpulse",
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Latest-result cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheLookups)
	})
}
