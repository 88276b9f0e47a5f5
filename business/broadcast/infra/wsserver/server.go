// Package wsserver serves the subscriber socket and the HTTP snapshot
// endpoints.
package wsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/spread-monitor/business/broadcast/app"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// Ensure interface compliance
var _ app.Transport = (*Server)(nil)

// Config configures the server.
type Config struct {
	Port           int
	Host           string
	SendBuffer     int           // outbound messages queued per client
	WriteTimeout   time.Duration // per frame
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns defaults for port.
func DefaultConfig(port int) Config {
	return Config{
		Port:           port,
		SendBuffer:     16,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Server accepts subscriber connections on "/" and serves snapshots on
// "/difference".
type Server struct {
	config   Config
	logger   logger.LoggerInterface
	upgrader websocket.Upgrader

	listener net.Listener
	srv      *http.Server
	events   app.Events

	mu    sync.Mutex
	conns map[string]*conn

	nextID atomic.Uint64
	closed atomic.Bool
}

// New creates a server. Nothing is bound until Start.
func New(cfg Config, log logger.LoggerInterface) *Server {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 16
	}
	return &Server{
		config: cfg,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// Start binds the listener and serves in the background. A bind failure is
// returned as CodeListenerBindFailed.
func (s *Server) Start(ctx context.Context, events app.Events) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return apperror.New(apperror.CodeListenerBindFailed,
			apperror.WithCause(err),
			apperror.WithContext(addr))
	}

	s.events = events
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "subscriber server stopped", "error", err)
		}
	}()

	s.logger.Info(ctx, "subscriber server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting and closes every client connection without
// waiting for queued messages.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.srv != nil {
		err = s.srv.Close()
	}

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	s.logger.Info(ctx, "subscriber server stopped", "closed_clients", len(conns))
	return err
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /difference", otelhttp.NewHandler(http.HandlerFunc(s.handleDifference), "hub.difference"))
	mux.HandleFunc("/", s.handleSocket)
	return mux
}

func (s *Server) handleDifference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pair := r.URL.Query().Get("pair")

	if pair == "" {
		writeJSON(w, s.events.LookupAll(ctx))
		return
	}

	rec, ok := s.events.Lookup(ctx, pair)
	if !ok {
		apperror.NotFound(apperror.CodeSpreadNotReady, pair).WriteJSON(w)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Debug(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if s.config.MaxMessageSize > 0 {
		ws.SetReadLimit(s.config.MaxMessageSize)
	}

	c := newConn(fmt.Sprintf("client-%d", s.nextID.Add(1)), ws, s.config)
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	s.events.ClientConnected(c)
	go c.writePump()
	err = c.readPump(s.events)

	c.close()
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.events.ClientDisconnected(c.id)

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		s.logger.Debug(r.Context(), "client read ended", "client", c.id, "error", err)
	}
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
