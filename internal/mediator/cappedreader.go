package mediator

import (
	"fmt"
	"io"
)

const capReadChunkBytes = 8192

// readWithCap reads all of r into a growable buffer, rejecting the read the
// moment the accumulated size would exceed limit. A body of exactly limit
// bytes succeeds; limit+1 fails. The error, not the partial buffer, is the
// signal — callers never get a truncated body back.
func readWithCap(r io.Reader, limit uint64) ([]byte, error) {
	buf := make([]byte, 0, minInt(int(limit), 1<<20))
	chunk := make([]byte, capReadChunkBytes)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if uint64(len(buf)+n) > limit {
				return nil, fmt.Errorf("response body exceeds max bytes")
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
