package server

import (
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/openpep/pepd/internal/audit"
	"github.com/openpep/pepd/internal/config"
	"github.com/openpep/pepd/internal/frame"
	"github.com/openpep/pepd/internal/mediator"
	"github.com/openpep/pepd/internal/policy"
	"github.com/openpep/pepd/internal/wire"
)

func newTestServer(t *testing.T) (*Server, config.PepConfig) {
	t.Helper()
	cfg := config.PepConfig{
		AllowedDomains:   []string{"example.com"},
		MaxRequestBytes:  1024,
		MaxResponseBytes: 1024,
		MaxRedirects:     5,
	}
	writer := audit.NewWriter(filepath.Join(t.TempDir(), "audit.jsonl"))
	m := mediator.New(cfg, policy.NewStaticAllowlist(cfg.AllowedDomains), writer, nil)
	return New(cfg, m), cfg
}

func TestServeHealthRequest(t *testing.T) {
	t.Parallel()

	srv, cfg := newTestServer(t)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go srv.handleConn(serverConn)

	reqBytes, err := json.Marshal(wire.HttpRequest{Method: wire.HealthMethod})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := frame.WriteFrame(clientConn, reqBytes); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	respBytes, err := frame.ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var health wire.HealthStatus
	if err := json.Unmarshal(respBytes, &health); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
	if health.AllowedDomainsCount != len(cfg.AllowedDomains) {
		t.Errorf("AllowedDomainsCount = %d, want %d", health.AllowedDomainsCount, len(cfg.AllowedDomains))
	}
	if health.MaxRequestBytes != cfg.MaxRequestBytes {
		t.Errorf("MaxRequestBytes = %d, want %d", health.MaxRequestBytes, cfg.MaxRequestBytes)
	}
}

func TestServeRejectsDeniedDomainAndKeepsConnectionOpen(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go srv.handleConn(serverConn)

	reqBytes, _ := json.Marshal(wire.HttpRequest{Method: "GET", URL: "https://evil.example/"})
	if err := frame.WriteFrame(clientConn, reqBytes); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	respBytes, err := frame.ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var resp wire.HttpResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != wire.ErrDeniedByPolicy {
		t.Fatalf("expected denied_by_policy, got %+v", resp.Error)
	}

	// The connection must remain open for a second request (the health probe).
	healthBytes, _ := json.Marshal(wire.HttpRequest{Method: wire.HealthMethod})
	if err := frame.WriteFrame(clientConn, healthBytes); err != nil {
		t.Fatalf("write second frame: %v", err)
	}
	if _, err := frame.ReadFrame(clientConn); err != nil {
		t.Fatalf("read second frame: %v", err)
	}
}

func TestServeCleanEOFClosesConnection(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	clientConn, serverConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		srv.handleConn(serverConn)
		close(done)
	}()

	clientConn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleConn did not return after client closed the connection")
	}
}
