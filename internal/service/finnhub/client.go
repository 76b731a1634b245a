package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MetalPulse/internal/domain/models"
	drepo "MetalPulse/internal/domain/repository"
	"MetalPulse/pkg/logger"
)

// ErrNotConnected is returned when a call needs an open socket.
var ErrNotConnected = errors.New("finnhub not connected")

// Client implements a MarketStream backed by Finnhub WebSocket trades.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	log            *logger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
}

var _ drepo.MarketStream = (*Client)(nil)

// New creates a Finnhub stream for the given symbols.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		dialer:         websocket.DefaultDialer,
		log:            l.Component("finnhub"),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("connected", logger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.log.Debug("subscribed", logger.String("symbol", s))
	}
	return nil
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Read streams quotes from the current connection. Both channels close when
// the connection fails or ctx is done; the error channel carries at most one
// error.
func (c *Client) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, 256)
	errs := make(chan error, 1)
	conn := c.current()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
			}
		}
	}()

	go func() {
		defer close(quotes)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- ErrNotConnected
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			for _, q := range decodeTrades(b) {
				select {
				case quotes <- q:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return quotes, errs
}

// decodeTrades returns the quotes of a trade frame; other frames (ping,
// error) yield nothing.
func decodeTrades(b []byte) []*models.Quote {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return nil
	}
	out := make([]*models.Quote, 0, len(m.Data))
	for _, d := range m.Data {
		if d.S == "" || d.P <= 0 {
			continue
		}
		out = append(out, &models.Quote{
			Symbol:    d.S,
			Price:     d.P,
			Volume:    d.V,
			Timestamp: time.UnixMilli(d.T).UTC(),
		})
	}
	return out
}

// Reconnect closes, waits reconnectDelay and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil
	}
	return c.conn
}
