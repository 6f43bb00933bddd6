package frame

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: []byte{}},
		{name: "short", payload: []byte(`{"a":1}`)},
		{name: "binary", payload: bytes.Repeat([]byte{0xff, 0x00, 0x7f}, 1000)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			if err := WriteFrame(w, tt.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}

			got, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Fatalf("got %q, want %q", got, tt.payload)
			}
		})
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	t.Parallel()

	_, err := ReadFrame(bytes.NewReader(nil))
	if err != ErrEndOfStream {
		t.Fatalf("got %v, want ErrEndOfStream", err)
	}
}

func TestReadFramePartialLengthIsIoError(t *testing.T) {
	t.Parallel()

	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x01}))
	if err == nil || err == ErrEndOfStream {
		t.Fatalf("got %v, want a non-EndOfStream io error", err)
	}
}

func TestReadFramePartialBodyIsIoError(t *testing.T) {
	t.Parallel()

	var lenBuf [4]byte
	lenBuf[3] = 10 // claims 10 bytes of payload
	r := io.MultiReader(bytes.NewReader(lenBuf[:]), bytes.NewReader([]byte{1, 2, 3}))

	_, err := ReadFrame(r)
	if err == nil || err == ErrEndOfStream {
		t.Fatalf("got %v, want a non-EndOfStream io error", err)
	}
}
