// Package socket serves the realtime websocket endpoint: protocol
// negotiation, authentication, and the per-connection loops that keep a
// client's view in sync with the event bus.
package socket

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go.ember.chat/internal/auth"
	"go.ember.chat/internal/bus"
	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/presence"
	"go.ember.chat/internal/state"
)

// Config holds websocket connection settings
type Config struct {
	ReadLimit      int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ReadLimit:    64 * 1024,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		MessageRate:  10,
		MessageBurst: 20,
	}
}

// Deps are the collaborators every session uses
type Deps struct {
	Auth     auth.Authenticator
	Bus      bus.Bus
	Store    state.Store
	Presence presence.Store
}

// Server accepts websocket connections and runs one session per connection
type Server struct {
	cfg      Config
	deps     Deps
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conns   map[*conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a socket server
func NewServer(cfg Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes returns the router serving the upgrade endpoint
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleUpgrade)
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	version := 1
	if v, err := strconv.Atoi(q.Get("version")); err == nil {
		version = v
	}
	format := ParseFormat(q.Get("format"))

	if s.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(uuid.NewString(), ws, codec{format: format}, s.cfg)
	if !s.track(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(c)

	metrics.SocketConnectionsActive.Inc()
	defer metrics.SocketConnectionsActive.Dec()

	slog.Info("Socket connected", "connId", c.id, "remote", r.RemoteAddr, "version", version, "format", format)
	s.serve(s.ctx, c, q.Get("token"))
	slog.Info("Socket disconnected", "connId", c.id)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Connections returns the number of open connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting connections, ends every session and waits for
// their presence cleanup to finish or ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	open := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	slog.Info("Closing socket sessions", "count", len(open))
	s.cancel()
	for _, c := range open {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
