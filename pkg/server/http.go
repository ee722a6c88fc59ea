package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/photon/pkg/transport"
)

// Handler returns the HTTP side of the server:
//
//	GET /ws       WebSocket upgrade to a protocol stream
//	GET /metrics  Prometheus metrics (when Metrics is configured)
//	GET /healthz  liveness and open connection count
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get(s.config.WebSocketPath, s.HandleWebSocket)
	if s.config.Metrics != nil {
		r.Method(http.MethodGet, s.config.MetricsPath, s.config.Metrics.Handler())
	}
	return r
}

// HandleWebSocket upgrades the request and serves the connection until it
// ends.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	_ = s.ServeStream(transport.NewWebSocketStream(c, s.config.WriteTimeout))
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Connections: s.ConnCount()}
	status := http.StatusOK
	if s.isClosing() {
		resp.Status = "shutting_down"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
