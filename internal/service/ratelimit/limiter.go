package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "MetalPulse/pkg/http"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token bucket.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket), now: time.Now} }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Middleware throttles a route per client IP: capacity requests, one token back every
// refill interval.
func (l *Limiter) Middleware(capacity int, refill time.Duration) echo.MiddlewareFunc {
	rate := 0.0
	if refill > 0 {
		rate = 1 / refill.Seconds()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + "|" + c.RealIP()
			if !l.Allow(key, float64(capacity), rate) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(refill.Seconds())))
				return xhttp.TooManyRequestsError("rate limit exceeded").WithParam("retry_after_seconds", int(refill.Seconds()))
			}
			return next(c)
		}
	}
}
