package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vango-dev/photon/pkg/conn"
	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/transport"
)

// handle serves one connection: it pumps transport bytes into the
// connection state machine and writes back whatever it queues.
type handle struct {
	id     uint64
	server *Server
	stream transport.Stream
	logger *slog.Logger

	mu   sync.Mutex // guards conn
	conn *conn.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Server) newHandle(id uint64, stream transport.Stream) *handle {
	logger := s.logger.With(
		"conn_id", id,
		"remote", stream.RemoteAddr(),
		"transport", stream.Kind())

	cfg := s.config.Conn.Clone()
	cfg.Logger = logger
	if s.config.Metrics != nil {
		cfg.Metrics = s.config.Metrics
	}

	return &handle{
		id:     id,
		server: s,
		stream: stream,
		logger: logger,
		conn:   conn.New(conn.RoleServer, s.app, cfg),
		done:   make(chan struct{}),
	}
}

// run serves the connection until the peer leaves, a protocol error occurs
// or the handle is closed. Clean endings return nil.
func (h *handle) run() error {
	defer h.close()

	if h.server.config.HeartbeatInterval > 0 {
		go h.heartbeat(h.server.config.HeartbeatInterval)
	}

	for {
		_ = h.stream.SetReadDeadline(time.Now().Add(h.readTimeout()))
		data, err := h.stream.Read()
		if err != nil {
			return h.readFailed(err)
		}

		h.mu.Lock()
		err = h.conn.OnInboundData(data)
		out := h.conn.TakeOutput()
		h.mu.Unlock()

		if werr := h.write(out); werr != nil {
			h.logger.Warn("write failed", "error", werr)
			return werr
		}
		if errors.Is(err, conn.ErrPeerClosed) {
			h.logger.Info("peer closed connection")
			return nil
		}
		if err != nil {
			h.sendClose(protocol.CloseProtocolError, protocol.CodeOf(err).String())
			return err
		}
	}
}

func (h *handle) readTimeout() time.Duration {
	h.mu.Lock()
	established := h.conn.Established()
	h.mu.Unlock()
	if established {
		return h.server.config.IdleTimeout
	}
	return h.server.config.HandshakeTimeout
}

func (h *handle) readFailed(err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		h.logger.Info("client disconnected")
		return nil
	case errors.Is(err, transport.ErrClosed):
		return nil
	case errors.As(err, &ne) && ne.Timeout():
		h.logger.Info("connection timed out")
		h.sendClose(protocol.CloseGoingAway, "timeout")
		return nil
	case transport.IsUnexpectedClose(err):
		h.logger.Warn("unexpected close", "error", err)
		return err
	default:
		h.logger.Warn("read failed", "error", err)
		return err
	}
}

func (h *handle) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			// A busy connection is not idle; skip the ping.
			if !h.mu.TryLock() {
				continue
			}
			if !h.conn.Established() || h.conn.Err() != nil {
				h.mu.Unlock()
				continue
			}
			err := h.conn.Ping()
			out := h.conn.TakeOutput()
			h.mu.Unlock()
			if err != nil {
				h.logger.Debug("ping failed", "error", err)
				continue
			}
			if err := h.write(out); err != nil {
				h.logger.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

func (h *handle) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.stream.Write(p)
}

// sendClose queues and flushes a close notification. Failures are ignored;
// the transport is about to be closed anyway.
func (h *handle) sendClose(reason protocol.CloseReason, message string) {
	h.mu.Lock()
	h.flushCloseLocked(reason, message)
}

// flushCloseLocked is sendClose with h.mu already held. It releases h.mu.
func (h *handle) flushCloseLocked(reason protocol.CloseReason, message string) {
	err := h.conn.Close(reason, message)
	out := h.conn.TakeOutput()
	h.mu.Unlock()
	if err == nil {
		_ = h.write(out)
	}
}

// shutdownLockWait bounds how long shutdown waits for a busy connection
// before closing it without notification.
const shutdownLockWait = 100 * time.Millisecond

// shutdown notifies the peer and closes the connection. A connection busy
// running a method is closed without notification.
func (h *handle) shutdown(reason protocol.CloseReason, message string) {
	if h.tryLockFor(shutdownLockWait) {
		h.flushCloseLocked(reason, message)
	} else {
		h.logger.Debug("connection busy, closing without notification")
	}
	h.close()
}

func (h *handle) tryLockFor(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for !h.mu.TryLock() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

func (h *handle) close() {
	h.closeOnce.Do(func() {
		close(h.done)
		_ = h.stream.Close()
	})
}
