package clientcli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openpep/pepd/internal/wire"
)

func TestHeaderFlagsSetSplitsOnFirstColon(t *testing.T) {
	t.Parallel()

	var h headerFlags
	if err := h.Set("X-Test: a:b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := wire.HeaderPair{"X-Test", "a:b"}
	if len(h.pairs) != 1 || h.pairs[0] != want {
		t.Fatalf("pairs = %+v, want [%v]", h.pairs, want)
	}
}

func TestHeaderFlagsSetRejectsMissingColon(t *testing.T) {
	t.Parallel()

	var h headerFlags
	if err := h.Set("no-colon-here"); err == nil {
		t.Fatal("expected an error for a header without a colon")
	}
}

func TestReadBodyFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	body, err := readBody(path, false)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want %q", body, "hello")
	}
}

func TestReadBodyNoneRequestedReturnsNil(t *testing.T) {
	t.Parallel()

	body, err := readBody("", false)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if body != nil {
		t.Fatalf("body = %v, want nil", body)
	}
}

func TestMainRequiresURL(t *testing.T) {
	t.Parallel()

	if err := Main([]string{"--method", "GET"}); err == nil {
		t.Fatal("expected an error when --url is omitted")
	}
}
