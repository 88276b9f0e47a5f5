package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/wsconn"
)

// Ensure interface compliance
var _ app.TickerStream = (*Client)(nil)

const (
	tracerName = "binance"
	meterName  = "binance"

	// BaseWSURL is the default stream endpoint. binance.websocket_url
	// overrides it, e.g. wss://stream.binance.us:9443 for US accounts.
	BaseWSURL = "wss://stream.binance.com:9443"
)

// ClientConfig holds configuration for the Binance client.
type ClientConfig struct {
	BaseURL        string        // WebSocket base URL
	Symbols        []string      // Symbols to subscribe (e.g., "BTCUSDC")
	ReconnectDelay time.Duration // fixed wait between reconnect attempts
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	Clock          clockwork.Clock
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(symbols []string) ClientConfig {
	return ClientConfig{
		BaseURL:        BaseWSURL,
		Symbols:        symbols,
		ReconnectDelay: 5 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	messagesReceived metric.Int64Counter
	tickersReceived  metric.Int64Counter
	parseErrors      metric.Int64Counter
	reconnects       metric.Int64Counter
	connected        metric.Int64Gauge
}

// Client is a Binance combined-stream ticker client. The connection is
// re-dialed after every drop at the fixed reconnect delay.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface
	url    string

	conn *wsconn.Client

	onTicker   app.TickerHandler
	handlersMu sync.RWMutex

	// Observability
	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a new Binance WebSocket client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	c := &Client{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	wsURL, err := BuildStreamURL(cfg.BaseURL, cfg.Symbols)
	if err != nil {
		return nil, err
	}
	c.url = wsURL

	wsCfg := wsconn.DefaultConfig(wsURL, "binance")
	wsCfg.ReconnectDelay = cfg.ReconnectDelay
	wsCfg.ReadTimeout = cfg.ReadTimeout
	wsCfg.WriteTimeout = cfg.WriteTimeout
	if cfg.MaxMessageSize > 0 {
		wsCfg.MaxMessageSize = cfg.MaxMessageSize
	}
	wsCfg.Clock = cfg.Clock

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeBinanceConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}
	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(c.handleState)
	c.conn = conn

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"binance_messages_total",
		metric.WithDescription("Total messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.tickersReceived, err = meter.Int64Counter(
		"binance_tickers_total",
		metric.WithDescription("Total ticker events received"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"binance_parse_errors_total",
		metric.WithDescription("Message parse errors"),
	)
	if err != nil {
		return err
	}

	c.metrics.reconnects, err = meter.Int64Counter(
		"binance_disconnects_total",
		metric.WithDescription("Connection drops followed by a scheduled reconnect"),
	)
	if err != nil {
		return err
	}

	c.metrics.connected, err = meter.Int64Gauge(
		"binance_connected",
		metric.WithDescription("1 while the stream is live"),
	)
	return err
}

// URL returns the combined stream URL.
func (c *Client) URL() string { return c.url }

// OnTicker registers the ticker handler. It runs on the read goroutine.
func (c *Client) OnTicker(h app.TickerHandler) {
	c.handlersMu.Lock()
	c.onTicker = h
	c.handlersMu.Unlock()
}

// Start begins streaming in the background. A failed first dial is retried
// like any later drop.
func (c *Client) Start(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "binance.start",
		trace.WithAttributes(
			attribute.StringSlice("symbols", c.config.Symbols),
		),
	)
	defer span.End()

	c.conn.Start()
	c.logger.Info(ctx, "binance stream starting", "url", c.url, "symbols", c.config.Symbols)
	return nil
}

// BuildStreamURL constructs the combined streams WebSocket URL.
func BuildStreamURL(baseURL string, symbols []string) (string, error) {
	if len(symbols) == 0 {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no symbols configured"))
	}

	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, TickerStream(sym))
	}

	// Combined streams URL: /stream?streams=stream1/stream2/...
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("binance websocket url"))
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")

	return u.String(), nil
}

func (c *Client) handleState(state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateConnected:
		c.metrics.connected.Record(ctx, 1)
		c.logger.Info(ctx, "binance stream connected")
	case wsconn.StateDisconnected:
		c.metrics.connected.Record(ctx, 0)
		c.metrics.reconnects.Add(ctx, 1)
		c.logger.Warn(ctx, "binance stream disconnected, reconnecting",
			"retry_in", c.config.ReconnectDelay.String(), "error", err)
	case wsconn.StateClosed:
		c.metrics.connected.Record(ctx, 0)
	}
}

// handleMessage processes incoming WebSocket messages.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	// Parse stream wrapper
	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// Might be a control response
		var resp WSResponse
		if json.Unmarshal(data, &resp) == nil && resp.ID != 0 {
			c.logger.Debug(ctx, "control response received")
			return
		}
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse message", "error", err, "data", string(data[:min(len(data), 500)]))
		return
	}

	c.routeStreamEvent(ctx, &event)
}

// routeStreamEvent routes the event to the appropriate handler.
func (c *Client) routeStreamEvent(ctx context.Context, event *StreamEvent) {
	stream := event.Stream

	if !strings.HasSuffix(stream, "@ticker") {
		c.logger.Debug(ctx, "ignoring stream", "stream", stream)
		return
	}

	var ticker TickerEvent
	if err := json.Unmarshal(event.Data, &ticker); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse ticker", "error", err, "data", string(event.Data[:min(len(event.Data), 200)]))
		return
	}
	if ticker.EventType != EventTypeTicker {
		c.logger.Debug(ctx, "ignoring event", "stream", stream, "type", ticker.EventType)
		return
	}
	if ticker.Symbol == "" {
		ticker.Symbol = extractSymbolFromStream(stream)
	}
	c.metrics.tickersReceived.Add(ctx, 1)

	c.handlersMu.RLock()
	handler := c.onTicker
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(ctx, ticker.Ticker(stream))
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the connection state.
func (c *Client) State() wsconn.State {
	return c.conn.State()
}

// extractSymbolFromStream extracts the symbol from a stream name.
// Example: "btcusdc@ticker" -> "BTCUSDC"
func extractSymbolFromStream(stream string) string {
	// Stream format: <symbol>@<stream_type>
	idx := strings.Index(stream, "@")
	if idx > 0 {
		return strings.ToUpper(stream[:idx])
	}
	return stream
}
