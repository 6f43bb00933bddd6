// Package audit implements the append-only JSON-line decision log. Every
// terminated request attempt produces exactly one entry; write failures are
// swallowed so that audit can never prevent a response from being returned.
package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/openpep/pepd/internal/logging"
)

var log = logging.New("audit")

// Entry is one persisted decision record.
type Entry struct {
	TsUnixMs      int64  `json:"ts_unix_ms"`
	Method        string `json:"method"`
	URL           string `json:"url"`
	Status        uint16 `json:"status"`
	ErrorCode     string `json:"error_code,omitempty"`
	RequestBytes  int    `json:"request_bytes"`
	ResponseBytes int    `json:"response_bytes"`
	Redirects     uint32 `json:"redirects"`
	Decision      string `json:"decision"`
	PolicyHash    string `json:"policy_hash,omitempty"`
	DecisionID    string `json:"decision_id,omitempty"`
}

// NewEntry builds an Entry, deriving Decision from whether errorCode is set
// (I2: decision == "allow" iff no error envelope was produced).
func NewEntry(method, url string, status uint16, errorCode string, requestBytes, responseBytes int, redirects uint32, policyHash, decisionID string) Entry {
	decision := "allow"
	if errorCode != "" {
		decision = "deny"
	}
	return Entry{
		TsUnixMs:      time.Now().UnixMilli(),
		Method:        method,
		URL:           url,
		Status:        status,
		ErrorCode:     errorCode,
		RequestBytes:  requestBytes,
		ResponseBytes: responseBytes,
		Redirects:     redirects,
		Decision:      decision,
		PolicyHash:    policyHash,
		DecisionID:    decisionID,
	}
}

// Writer appends Entry records to a single audit file.
type Writer struct {
	path     string
	observer func(Entry)
}

// NewWriter returns a Writer targeting path. The file is opened per-append,
// not held open, so concurrent appenders are tolerated via O_APPEND
// semantics.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Observe registers fn to be called with every entry after it is appended.
// It exists so a live-tail consumer (the admin UI's websocket hub) can
// mirror the log without re-reading the file; only one observer may be
// registered at a time.
func (w *Writer) Observe(fn func(Entry)) {
	w.observer = fn
}

// Append writes entry as one JSON line. Any serialization or I/O failure is
// logged to the diagnostic stream and otherwise ignored — the decision has
// already been made and must not be reversed by an audit-layer fault.
func (w *Writer) Append(entry Entry) {
	line, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to encode audit entry: %v", err)
		return
	}
	line = append(line, '\n')

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open audit log %s: %v", w.path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		log.Printf("failed to append audit entry to %s: %v", w.path, err)
		return
	}

	if w.observer != nil {
		w.observer(entry)
	}
}
