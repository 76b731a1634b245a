package usecase

import (
	"context"
	"sync"
	"time"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/logger"
)

// QuoteTracker keeps the latest live gold and silver quotes from a market
// stream and derives the intraday ratio.
type QuoteTracker struct {
	stream  drepo.MarketStream
	metrics drepo.Metrics
	gold    string
	silver  string
	log     *logger.Logger

	mu        sync.RWMutex
	lastGold  *models.Quote
	lastSilv  *models.Quote
	updatedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQuoteTracker tracks goldSymbol and silverSymbol on stream.
func NewQuoteTracker(stream drepo.MarketStream, metrics drepo.Metrics, goldSymbol, silverSymbol string, l *logger.Logger) *QuoteTracker {
	if l == nil {
		l = logger.Nop()
	}
	return &QuoteTracker{
		stream:  stream,
		metrics: metrics,
		gold:    goldSymbol,
		silver:  silverSymbol,
		log:     l.Component("quote_tracker"),
	}
}

// IsConnected returns true if the market stream is connected.
func (t *QuoteTracker) IsConnected() bool {
	return t.stream.IsConnected()
}

// Start connects, subscribes and consumes quotes until ctx is done.
func (t *QuoteTracker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if err := t.stream.Connect(ctx); err != nil {
		cancel()
		return err
	}
	if err := t.stream.Subscribe(ctx); err != nil {
		cancel()
		return err
	}
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	t.wg.Add(1)
	go t.run(ctx)
	return nil
}

func (t *QuoteTracker) run(ctx context.Context) {
	defer t.wg.Done()
	for {
		qCh, errCh := t.stream.Read(ctx)
		err := t.consume(ctx, qCh, errCh)
		if ctx.Err() != nil {
			return
		}
		t.metrics.RecordError("stream")
		t.log.Warn("quote stream interrupted, reconnecting", logger.Error(err))
		for {
			rerr := t.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			t.metrics.RecordError("stream_reconnect")
			t.log.Warn("reconnect failed", logger.Error(rerr))
		}
	}
}

// consume drains one Read session. It returns when the session ends.
func (t *QuoteTracker) consume(ctx context.Context, qCh <-chan *models.Quote, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
			if !ok {
				errCh = nil
			}
		case q, ok := <-qCh:
			if !ok {
				return nil
			}
			t.Observe(q)
		}
	}
}

// Observe records one quote. Symbols other than gold and silver are ignored.
func (t *QuoteTracker) Observe(q *models.Quote) {
	if q == nil {
		return
	}
	t.mu.Lock()
	switch q.Symbol {
	case t.gold:
		t.lastGold = q
	case t.silver:
		t.lastSilv = q
	default:
		t.mu.Unlock()
		return
	}
	t.updatedAt = q.Timestamp
	t.mu.Unlock()
	t.metrics.RecordLastPrice(q.Symbol, q.Price)
}

// Snapshot returns the latest quotes. Ratio is nil until both metals have
// printed.
func (t *QuoteTracker) Snapshot() models.QuoteSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := models.QuoteSnapshot{
		Connected: t.stream.IsConnected(),
		UpdatedAt: t.updatedAt,
	}
	if t.lastGold != nil {
		g := *t.lastGold
		snap.Gold = &g
	}
	if t.lastSilv != nil {
		s := *t.lastSilv
		snap.Silver = &s
	}
	if snap.Gold != nil && snap.Silver != nil && snap.Silver.Price > 0 {
		r := snap.Gold.Price / snap.Silver.Price
		snap.Ratio = &r
	}
	return snap
}

// Shutdown closes the stream and waits for the consumer to exit.
func (t *QuoteTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()
	err := t.stream.Close()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
