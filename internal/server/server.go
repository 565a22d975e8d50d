package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/logging"
	"github.com/hitechniques/llclient/internal/metrics"
	"github.com/hitechniques/llclient/internal/relay"
)

// Config holds the server configuration
type Config struct {
	Addr string // Listen address, e.g. "127.0.0.1:9108"
}

// SnapshotFunc returns the current channel registry
type SnapshotFunc func() channels.Snapshot

// Server is the HTTP side server exposing metrics, registry state and a
// websocket event relay
type Server struct {
	config   *Config
	hub      *relay.Hub
	metrics  *metrics.Collector
	snapshot SnapshotFunc
	upgrader websocket.Upgrader

	router     chi.Router
	httpServer *http.Server
	listener   net.Listener

	wg           sync.WaitGroup
	mu           sync.Mutex
	activeConns  map[string]*websocket.Conn
	shuttingDown bool
}

// New creates a server. hub, m and snapshot may be nil; the matching
// endpoints then report the feature as unavailable.
func New(config *Config, hub *relay.Hub, m *metrics.Collector, snapshot SnapshotFunc) *Server {
	s := &Server{
		config:   config,
		hub:      hub,
		metrics:  m,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tooling, any origin
			},
		},
		activeConns: make(map[string]*websocket.Conn),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/channels", s.handleChannels)
	r.Get("/ws", s.handleWebSocket)

	s.router = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logging.Info("Side server listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Side server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, closes websocket clients and waits
// for their handlers to return
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down side server...")

	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Debug("Closing websocket client", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("Side server shutdown timed out")
		return ctx.Err()
	}

	if shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down side server: %w", shutdownErr)
	}
	return nil
}

// GetActiveConnections returns the number of websocket clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": s.GetActiveConnections(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "not connected"})
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

// requestLogger logs each request at debug level
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
