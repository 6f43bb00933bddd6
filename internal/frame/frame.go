// Package frame implements the length-prefixed message framing used on the
// guest/daemon stream transport: a 4-byte big-endian length prefix followed
// by exactly that many bytes of JSON payload.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrEndOfStream is returned by ReadFrame when the peer closed the
// connection cleanly before sending any length-prefix bytes.
var ErrEndOfStream = errors.New("frame: end of stream")

// ReadFrame reads one length-prefixed payload from r. A clean shutdown
// (zero bytes before the length prefix) is reported as ErrEndOfStream; any
// other short read is an *io* failure and is returned unwrapped so callers
// can distinguish the two.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, ErrEndOfStream
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// flusher is implemented by buffered writers (e.g. bufio.Writer) that need
// an explicit flush after the payload is written.
type flusher interface {
	Flush() error
}

// WriteFrame writes the length prefix and payload, then flushes w if it
// supports buffering.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
