// Package server runs protocol connections for many clients.
//
// A Server accepts TCP connections on Config.Address and, when
// Config.HTTPAddress is set, WebSocket connections on Config.WebSocketPath.
// Each connection gets its own conn.Conn driven by one goroutine that reads
// from the transport, feeds OnInboundData and writes queued output back.
// All connections share the Application passed to New, typically an
// *rmi.Registry.
//
// # Lifecycle
//
//   - Connections that do not finish the handshake within HandshakeTimeout
//     are closed.
//   - Established connections are pinged every HeartbeatInterval and closed
//     after IdleTimeout without inbound data.
//   - A protocol error sends a close notification with CloseProtocolError
//     and closes the transport.
//   - Shutdown stops the listeners, notifies every peer with
//     CloseServerShutdown and waits for the connection goroutines.
//
// # Metrics
//
// Metrics implements conn.Recorder and rmi.Observer on top of Prometheus
// collectors. Pass the same *Metrics to Config.Metrics and to
// rmi.WithObserver; the HTTP handler serves it on Config.MetricsPath.
//
//	metrics := server.NewMetrics()
//	reg := rmi.NewRegistry(rmi.WithObserver(metrics))
//	cfg := server.DefaultConfig()
//	cfg.Metrics = metrics
//	srv := server.New(reg, cfg)
//	log.Fatal(srv.Run())
package server
