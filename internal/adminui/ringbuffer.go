package adminui

import (
	"sync"

	"github.com/openpep/pepd/internal/audit"
)

// ringBuffer keeps a fixed-size window of the most recently published audit
// entries, used to backfill newly connected websocket clients.
type ringBuffer struct {
	entries []audit.Entry
	head    int
	count   int
	full    bool
	mutex   sync.RWMutex
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = 1000
	}
	return &ringBuffer{entries: make([]audit.Entry, size)}
}

func (rb *ringBuffer) add(entry audit.Entry) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.full {
		return
	}
	rb.count++
	if rb.count == len(rb.entries) {
		rb.full = true
	}
}

// all returns the buffered entries in chronological order, oldest first.
func (rb *ringBuffer) all() []audit.Entry {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	if rb.count == 0 {
		return nil
	}
	out := make([]audit.Entry, rb.count)
	if !rb.full {
		copy(out, rb.entries[:rb.count])
		return out
	}
	tailToEnd := len(rb.entries) - rb.head
	copy(out, rb.entries[rb.head:])
	copy(out[tailToEnd:], rb.entries[:rb.head])
	return out
}
