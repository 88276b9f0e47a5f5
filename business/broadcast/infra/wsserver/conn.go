package wsserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fd1az/spread-monitor/business/broadcast/app"
)

// conn is one subscriber. Only writePump writes data frames; Send queues
// without blocking.
type conn struct {
	id     string
	ws     *websocket.Conn
	config Config

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ app.Client = (*conn)(nil)

func newConn(id string, ws *websocket.Conn, cfg Config) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		config: cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues msg. It returns false when the connection is closed or the
// queue is full.
func (c *conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *conn) pongWait() time.Duration {
	if c.config.PingInterval <= 0 {
		return 0
	}
	return c.config.PingInterval * 2
}

func (c *conn) readPump(events app.Events) error {
	if wait := c.pongWait(); wait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		events.ClientMessage(c.id, msg)
	}
}

func (c *conn) writePump() {
	var ping <-chan time.Time
	if c.config.PingInterval > 0 {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.setWriteDeadline()
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}

		case <-ping:
			c.setWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) setWriteDeadline() {
	if c.config.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
}

// closeWith sends a close frame and closes the socket.
func (c *conn) closeWith(code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.close()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
