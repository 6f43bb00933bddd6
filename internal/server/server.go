// Package server implements the connection server (C7) and the reserved
// health probe pseudo-method (C8): it accepts streams, frames requests and
// responses, and dispatches each request to the mediator or to a health
// snapshot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/openpep/pepd/internal/config"
	"github.com/openpep/pepd/internal/frame"
	"github.com/openpep/pepd/internal/logging"
	"github.com/openpep/pepd/internal/mediator"
	"github.com/openpep/pepd/internal/wire"
)

// Version is reported in health snapshots. It is overridden at link time in
// release builds via -ldflags.
var Version = "dev"

var log = logging.New("server")

// Server accepts connections and runs the per-connection request loop.
type Server struct {
	cfg      config.PepConfig
	mediator *mediator.Mediator
}

// New builds a Server bound to a fully constructed mediator.
func New(cfg config.PepConfig, m *mediator.Mediator) *Server {
	return &Server{cfg: cfg, mediator: m}
}

// Serve accepts connections from l until it returns an error (typically
// because l was closed). Each connection is served by its own goroutine, so
// a slow or stalled guest cannot block other connections; within a single
// connection, requests are still served strictly one at a time (§5).
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn runs the read-dispatch-write loop for one connection until a
// clean end-of-stream or an I/O error terminates it.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		payload, err := frame.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, frame.ErrEndOfStream) {
				log.Printf("connection %s: read frame: %v", conn.RemoteAddr(), err)
			}
			return
		}

		responseBytes, err := s.dispatch(context.Background(), payload)
		if err != nil {
			log.Printf("connection %s: %v", conn.RemoteAddr(), err)
			return
		}

		if err := frame.WriteFrame(conn, responseBytes); err != nil {
			log.Printf("connection %s: write frame: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// dispatch decodes one request frame and routes it to the health snapshot
// or the mediator, returning the encoded response frame payload.
func (s *Server) dispatch(ctx context.Context, payload []byte) ([]byte, error) {
	var req wire.HttpRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		// A malformed envelope cannot even be attributed to a method, so
		// unlike a mediator rejection it terminates the connection rather
		// than producing a response frame.
		return nil, err
	}

	if req.Method == wire.HealthMethod {
		return json.Marshal(s.healthStatus())
	}

	resp := s.mediator.Mediate(ctx, req)
	return json.Marshal(resp)
}

func (s *Server) healthStatus() wire.HealthStatus {
	return wire.HealthStatus{
		Status:              "ok",
		Version:             Version,
		AllowedDomainsCount: len(s.cfg.AllowedDomains),
		MaxRequestBytes:     s.cfg.MaxRequestBytes,
		MaxResponseBytes:    s.cfg.MaxResponseBytes,
	}
}
