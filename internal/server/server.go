package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/dspw215/internal/accessory"
	"github.com/muurk/dspw215/internal/logging"
)

// DefaultPort is the bridge's listening port when none is configured.
const DefaultPort = 8215

// Config holds the server configuration
type Config struct {
	Host         string
	Port         int
	PollInterval time.Duration // How often subscribers get a fresh snapshot
}

// Outlet is the plug the bridge serves.
type Outlet interface {
	On(ctx context.Context) (bool, error)
	SetOn(ctx context.Context, on bool) error
	Temperature(ctx context.Context) (float64, error)
	Refresh(ctx context.Context) (accessory.Snapshot, error)
	Snapshot() accessory.Snapshot
	Information() accessory.Information
}

// Server is the HTTP/WebSocket bridge for a single plug
type Server struct {
	config   *Config
	outlet   Outlet
	hub      *hub
	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config, outlet Outlet) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	return &Server{
		config: config,
		outlet: outlet,
		hub:    newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the bridge's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("PUT /api/state", s.handlePutState)
	mux.HandleFunc("GET /api/temperature", s.handleTemperature)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return logRequests(mux)
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves the bridge and blocks until ctx is done or a shutdown signal
// arrives.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting DSP-W215 bridge",
		zap.String("addr", addr),
		zap.Duration("poll_interval", s.config.PollInterval),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	logging.Info("Server listening for connections", zap.String("addr", listener.Addr().String()))

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(pollCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping server...")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	stopPolling()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// poll refreshes the outlet every interval and broadcasts the result.
func (s *Server) poll(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.outlet.Refresh(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.Warn("Poll failed", zap.Error(err))
				}
				continue
			}
			s.hub.broadcast(snap)
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.hub.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// Subscribers returns the number of connected WebSocket clients
func (s *Server) Subscribers() int {
	return s.hub.len()
}
