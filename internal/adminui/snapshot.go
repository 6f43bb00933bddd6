package adminui

import (
	"encoding/json"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/openpep/pepd/internal/audit"
)

// ServeSnapshot writes the ring buffer's current contents as a gzip-
// compressed JSON array. Operators use it to fetch backlog without holding
// a websocket open (e.g. from a script or a cold dashboard load).
func (h *Hub) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	entries := h.buffer.all()
	if entries == nil {
		entries = []audit.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")

	gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
	if err != nil {
		log.Printf("building gzip writer for snapshot: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer gz.Close()

	if err := json.NewEncoder(gz).Encode(entries); err != nil {
		log.Printf("encoding audit snapshot: %v", err)
	}
}

// Handler returns an http.ServeMux exposing the websocket stream at /stream
// and the compressed backlog at /snapshot.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", h.ServeWebSocket)
	mux.HandleFunc("/snapshot", h.ServeSnapshot)
	return mux
}
