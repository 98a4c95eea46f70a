package mtfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"FxBridge/internal/domain/models"
	drepo "FxBridge/internal/domain/repository"
	xlogger "FxBridge/pkg/logger"
)

// Client is a MarketStream backed by a terminal-side websocket gateway.
// Gateways push tick frames for the symbols subscribed after connect; the
// EA HTTP ingest path remains the fallback when no gateway is deployed.
type Client struct {
	broker         string
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *xlogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a websocket MarketStream for one broker gateway.
func New(broker, apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, log *xlogger.Logger) drepo.MarketStream {
	return &Client{
		broker:         broker,
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("mtfeed connect %s: %w", c.broker, err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("mtfeed connected", xlogger.String("broker", c.broker))
	return nil
}

// Subscribe subscribes to the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("mtfeed %s not connected", c.broker)
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("mtfeed subscribed",
		xlogger.String("broker", c.broker), xlogger.Int("symbols", len(c.symbols)))
	return nil
}

// wire frame: {"type":"tick","data":[{s,b,a,l,d,p,v,t}]}; t is epoch ms.
type wsTick struct {
	S string  `json:"s"`
	B float64 `json:"b"`
	A float64 `json:"a"`
	L float64 `json:"l"`
	D int     `json:"d"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"`
}

type wsFrame struct {
	Type string   `json:"type"`
	Data []wsTick `json:"data"`
}

// Read streams parsed quotes and a terminal error. The quote channel closes
// when the read loop exits; callers reconnect via Reconnect.
func (c *Client) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("mtfeed %s conn nil", c.broker)
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("mtfeed read: %w", err)
					return
				}
				var frame wsFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-tick frames
					continue
				}
				if frame.Type != "tick" {
					continue
				}
				for _, t := range frame.Data {
					q := &models.Quote{
						Broker:    c.broker,
						Symbol:    t.S,
						Bid:       t.B,
						Ask:       t.A,
						Last:      t.L,
						Digits:    t.D,
						Point:     t.P,
						Volume:    t.V,
						Timestamp: time.UnixMilli(t.T).UTC(),
						Source:    "ws",
					}
					select {
					case quotes <- q:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes, waits the configured delay, and re-subscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
