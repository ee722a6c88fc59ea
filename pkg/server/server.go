package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/transport"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// ErrTooManyConnections is returned by ServeStream when MaxConnections is
// reached.
var ErrTooManyConnections = errors.New("server: too many connections")

// Server accepts protocol connections over TCP and WebSocket and hands
// their calls to one shared Application.
type Server struct {
	config   *Config
	app      conn.Application
	logger   *slog.Logger
	upgrader websocket.Upgrader

	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu         sync.Mutex
	closing    bool
	handles    map[uint64]*handle
	listeners  map[net.Listener]struct{}
	httpServer *http.Server
}

// New creates a server dispatching to app, which must be safe for
// concurrent use by every connection. A nil config uses DefaultConfig().
func New(app conn.Application, config *Config) *Server {
	config = config.withDefaults()
	return &Server{
		config: config,
		app:    app,
		logger: config.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.ReadBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		handles:   make(map[uint64]*handle),
		listeners: make(map[net.Listener]struct{}),
	}
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Serve accepts TCP connections on ln until Shutdown. Each connection is
// served on its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("listening", "address", ln.Addr().String())

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay = acceptBackoff(delay)
				s.logger.Warn("accept failed; retrying", "error", err, "delay", delay)
				time.Sleep(delay)
				continue
			}
			return err
		}
		delay = 0

		stream := transport.NewTCPStream(c, s.config.ReadBufferSize, s.config.WriteTimeout)
		go func() {
			_ = s.ServeStream(stream)
		}()
	}
}

func acceptBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// ServeStream serves one connection and blocks until it ends. The stream
// is always closed on return.
func (s *Server) ServeStream(stream transport.Stream) error {
	h, err := s.track(stream)
	if err != nil {
		_ = stream.Close()
		return err
	}
	defer s.untrack(h)

	h.logger.Info("client accepted")
	err = h.run()
	h.logger.Info("connection closed")
	return err
}

func (s *Server) track(stream transport.Stream) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return nil, ErrServerClosed
	}
	if limit := s.config.MaxConnections; limit > 0 && len(s.handles) >= limit {
		s.logger.Warn("connection rejected", "remote", stream.RemoteAddr(), "max_connections", limit)
		if s.config.Metrics != nil {
			s.config.Metrics.connectionRejected(stream.Kind())
		}
		return nil, ErrTooManyConnections
	}

	h := s.newHandle(s.nextID.Add(1), stream)
	s.handles[h.id] = h
	s.wg.Add(1)
	if s.config.Metrics != nil {
		s.config.Metrics.connectionOpened(stream.Kind())
	}
	return h, nil
}

func (s *Server) untrack(h *handle) {
	s.mu.Lock()
	delete(s.handles, h.id)
	s.mu.Unlock()
	if s.config.Metrics != nil {
		s.config.Metrics.connectionClosed(h.stream.Kind())
	}
	s.wg.Done()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// ListenAndServe listens on the TCP address and, if configured, the HTTP
// address, and serves both until Shutdown or a listener fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.Serve(ln)
	}()

	if s.config.HTTPAddress != "" {
		httpServer := &http.Server{
			Addr:              s.config.HTTPAddress,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.mu.Lock()
		s.httpServer = httpServer
		s.mu.Unlock()

		go func() {
			s.logger.Info("http listening", "address", s.config.HTTPAddress)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- ErrServerClosed
		}()
	}

	return <-errCh
}

// Run starts the server and blocks until SIGINT/SIGTERM or a listener
// failure, then shuts down gracefully.
func (s *Server) Run() error {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		_ = s.Shutdown(context.Background())
		return err

	case <-shutdown:
		s.logger.Info("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	}
}

// Shutdown stops accepting connections, sends a close notification to
// every open connection and waits for them to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for ln := range s.listeners {
		_ = ln.Close()
	}
	s.listeners = make(map[net.Listener]struct{})
	handles := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	var firstErr error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown error", "error", err)
			firstErr = err
		}
	}

	for _, h := range handles {
		go h.shutdown(protocol.CloseServerShutdown, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Error("shutdown timed out", "open_connections", s.ConnCount())
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}

	s.logger.Info("server shutdown complete")
	return firstErr
}
