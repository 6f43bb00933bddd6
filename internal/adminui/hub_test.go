package adminui

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gws "github.com/gorilla/websocket"

	"github.com/openpep/pepd/internal/audit"
)

func TestPublishAddsToRingBuffer(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	h.Publish(audit.Entry{URL: "https://example.com", Decision: "allow"})

	entries := h.buffer.all()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].URL != "https://example.com" {
		t.Errorf("URL = %q", entries[0].URL)
	}
}

func TestRegisterWithWiresObserver(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	w := audit.NewWriter(t.TempDir() + "/audit.jsonl")
	h.RegisterWith(w)

	w.Append(audit.NewEntry("GET", "https://example.com/", 200, "", 0, 2, 0, "", ""))

	entries := h.buffer.all()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Decision != "allow" {
		t.Errorf("Decision = %q, want allow", entries[0].Decision)
	}
}

func TestServeSnapshotReturnsGzippedJSON(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	h.Publish(audit.NewEntry("GET", "https://example.com/", 200, "", 0, 2, 0, "", ""))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	h.ServeSnapshot(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rr.Header().Get("Content-Encoding"))
	}

	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer zr.Close()

	var entries []audit.Entry
	if err := json.NewDecoder(zr).Decode(&entries); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
}

func TestServeWebSocketStreamsBacklogThenLive(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	h.Publish(audit.NewEntry("GET", "https://example.com/", 200, "", 0, 2, 0, "", ""))
	go h.Run()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWebSocket))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/stream"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read backlog message: %v", err)
	}
	var entry audit.Entry
	if err := json.Unmarshal(msg, &entry); err != nil {
		t.Fatalf("unmarshal backlog entry: %v", err)
	}
	if entry.URL != "https://example.com/" {
		t.Errorf("URL = %q", entry.URL)
	}

	h.Publish(audit.NewEntry("POST", "https://example.com/live", 201, "", 0, 0, 0, "", ""))

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read live message: %v", err)
	}
	var live audit.Entry
	if err := json.Unmarshal(msg, &live); err != nil {
		t.Fatalf("unmarshal live entry: %v", err)
	}
	if live.URL != "https://example.com/live" {
		t.Errorf("URL = %q", live.URL)
	}
}

func TestHandlerRoutesStreamAndSnapshot(t *testing.T) {
	t.Parallel()

	h := NewHub(10)
	handler := h.Handler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	// A plain GET without upgrade headers reaches the websocket handler,
	// which rejects the handshake with 400 rather than the mux's 404.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/stream", nil)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("/stream status = %d, want 400 from the websocket handshake", rr.Code)
	}
}
