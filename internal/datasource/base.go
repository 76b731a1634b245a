package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	xhttp "MetalPulse/pkg/http"
	"MetalPulse/pkg/logger"
)

// retryAttempts bounds retries of transient upstream errors inside one
// breaker call.
const retryAttempts = 3

// remote holds what every HTTP-backed source shares: a base URL, the outbound
// client and a breaker.
type remote struct {
	baseURL string
	client  *xhttp.Client
	breaker *Breaker
	log     *logger.Logger
}

func newRemote(name, baseURL string, timeout time.Duration, bc BreakerConfig, l *logger.Logger, opts ...xhttp.ClientOption) *remote {
	if l == nil {
		l = logger.Nop()
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
		breaker: NewBreaker(name, bc),
		log:     l.Component(name),
	}
}

// get fetches path under baseURL through the breaker, retrying temporary
// failures with a linear backoff.
func (r *remote) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if r.client == nil || r.baseURL == "" {
		return nil, fmt.Errorf("%w: client not initialized", ErrSourceUnavailable)
	}
	return r.breaker.Do(func() ([]byte, error) {
		var err error
		for i := 1; i <= retryAttempts; i++ {
			var body []byte
			body, err = r.client.GetBytes(ctx, r.baseURL+path, query)
			if err == nil {
				return body, nil
			}
			if !temporary(err) || i == retryAttempts {
				break
			}
			r.log.Debug("retrying upstream request",
				logger.String("path", path),
				logger.Int("attempt", i),
				logger.Error(err))
			select {
			case <-time.After(time.Duration(i) * 200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, fmt.Errorf("get %s: %w", path, err)
	})
}

func temporary(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
