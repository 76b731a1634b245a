package datasource

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrSourceUnavailable wraps every failed remote fetch, including calls
// rejected by an open breaker.
var ErrSourceUnavailable = errors.New("data source unavailable")

// BreakerConfig controls when a source stops calling its upstream.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 3, OpenTimeout: 60 * time.Second}
}

// Breaker guards one upstream.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker trips after MaxFailures consecutive failures and stays open for
// OpenTimeout before letting a trial request through.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := defaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: cfg.OpenTimeout,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() ([]byte, error)) ([]byte, error) {
	out, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, b.name, err)
	}
	return out.([]byte), nil
}

// State reports the breaker state name (closed, half-open, open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}
