// Package wsconn provides a WebSocket client that reconnects after a fixed delay.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/fd1az/spread-monitor/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected" // streaming
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string

	// ReconnectDelay is the fixed wait before each reconnect attempt.
	// Zero disables reconnection.
	ReconnectDelay time.Duration

	DialTimeout    time.Duration
	ReadTimeout    time.Duration // max silence before the connection is dropped, 0 = none
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 = no pings
	MaxMessageSize int64

	Clock clockwork.Clock
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		ReconnectDelay: 5 * time.Second,
		DialTimeout:    10 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// MessageHandler receives every inbound data frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler observes state transitions. err is the cause of a disconnect.
type StateHandler func(state State, err error)

// Client is a single WebSocket connection with a supervisor goroutine that
// re-dials after the connection drops. At most one connection is live at a time.
type Client struct {
	config Config
	clock  clockwork.Clock

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage  MessageHandler
	onState    StateHandler
	handlersMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	supervising atomic.Bool
	closed      atomic.Bool
	reconnects  atomic.Int64
}

// New creates a new WebSocket client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("wsconn: url is required"))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: cfg,
		clock:  clock,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnMessage registers the inbound message handler. Handlers run on the read
// goroutine, so messages are delivered in arrival order.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange registers a state transition observer.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = h
	c.handlersMu.Unlock()
}

// Connect dials once. On success the supervisor takes over and reconnects
// after every drop.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	if !c.supervising.CompareAndSwap(false, true) {
		return nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.supervising.Store(false)
		return err
	}

	c.wg.Add(1)
	go c.supervise(conn)
	return nil
}

// Start launches the supervisor without blocking. The first dial happens on
// the supervisor goroutine.
func (c *Client) Start() {
	if c.closed.Load() || !c.supervising.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go c.supervise(nil)
}

func (c *Client) supervise(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		if conn == nil {
			var err error
			if conn, err = c.dial(c.ctx); err != nil {
				if !c.waitRetry() {
					return
				}
				continue
			}
		}

		err := c.stream(conn)
		c.releaseConn(conn)
		conn = nil

		if c.closed.Load() {
			return
		}
		c.setState(StateDisconnected, err)

		if !c.waitRetry() {
			return
		}
	}
}

// waitRetry blocks for the reconnect delay. It reports false when the
// client is closing or reconnection is disabled.
func (c *Client) waitRetry() bool {
	if c.config.ReconnectDelay <= 0 || c.closed.Load() {
		c.supervising.Store(false)
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case <-c.clock.After(c.config.ReconnectDelay):
		c.reconnects.Add(1)
		return true
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.setState(StateConnecting, nil)

	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		err = apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
		if !c.closed.Load() {
			c.setState(StateDisconnected, err)
		}
		return nil, err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		conn.CloseNow()
		return nil, apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)
	return conn, nil
}

// stream reads until the connection fails.
func (c *Client) stream(conn *websocket.Conn) error {
	if c.config.PingInterval > 0 {
		pingCtx, stop := context.WithCancel(c.ctx)
		defer stop()
		go c.pingLoop(pingCtx, conn)
	}

	for {
		ctx, cancel := c.ctx, context.CancelFunc(func() {})
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			return err
		}

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := c.clock.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			pingCtx, cancel := context.WithTimeout(ctx, c.config.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// releaseConn closes conn unless Close already took ownership of it.
func (c *Client) releaseConn(conn *websocket.Conn) {
	c.connMu.Lock()
	owned := c.conn == conn
	if owned {
		c.conn = nil
	}
	c.connMu.Unlock()

	if owned {
		conn.CloseNow()
	}
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether a connection is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Reconnects returns how many reconnect delays have elapsed.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close stops the supervisor and closes the connection. Safe to call twice.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.cancel()
	c.wg.Wait()

	c.setState(StateClosed, nil)

	if err != nil && !isClosedErr(err) {
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

func (c *Client) setState(s State, err error) {
	c.stateMu.Lock()
	if c.state == s {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	h := c.onState
	c.handlersMu.RUnlock()
	if h != nil {
		h(s, err)
	}
}

func isClosedErr(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
