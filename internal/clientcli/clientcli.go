// Package clientcli implements the "client" CLI subcommand: it sends one
// framed HttpRequest to a running daemon and prints the decoded response.
package clientcli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openpep/pepd/internal/frame"
	"github.com/openpep/pepd/internal/transport"
	"github.com/openpep/pepd/internal/wire"
)

// Main parses client-mode flags, sends one request frame, and prints the
// response as pretty JSON.
func Main(args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	dial := transport.DefaultDialConfig()
	cid := fs.Uint("cid", uint(dial.CID), "vsock context ID to dial (ignored on non-Linux hosts)")
	port := fs.Uint("port", uint(dial.Port), "vsock or loopback TCP port to dial")
	method := fs.String("method", "GET", "HTTP method")
	url := fs.String("url", "", "request URL")
	var headers headerFlags
	fs.Var(&headers, "header", "request header as \"Name: value\" (repeatable)")
	bodyFile := fs.String("body-file", "", "path to a file whose contents become the request body")
	bodyStdin := fs.Bool("body-stdin", false, "read the request body from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return fmt.Errorf("client: --url is required")
	}

	body, err := readBody(*bodyFile, *bodyStdin)
	if err != nil {
		return err
	}

	req := wire.HttpRequest{
		Method:  *method,
		URL:     *url,
		Headers: headers.pairs,
	}
	if body != nil {
		encoded := base64.StdEncoding.EncodeToString(body)
		req.BodyBase64 = &encoded
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	conn, err := transport.Dial(transport.Config{CID: uint32(*cid), Port: uint32(*port)})
	if err != nil {
		return fmt.Errorf("dialing daemon: %w", err)
	}
	defer conn.Close()

	if err := frame.WriteFrame(conn, payload); err != nil {
		return fmt.Errorf("writing request frame: %w", err)
	}

	respBytes, err := frame.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("reading response frame: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, respBytes, "", "  "); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	fmt.Println(pretty.String())
	return nil
}

func readBody(path string, stdin bool) ([]byte, error) {
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading body file %s: %w", path, err)
		}
		return data, nil
	case stdin:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading body from stdin: %w", err)
		}
		if len(data) == 0 {
			return nil, nil
		}
		return data, nil
	default:
		return nil, nil
	}
}

// headerFlags accumulates repeated -header "Name: value" flags into wire
// header pairs.
type headerFlags struct {
	pairs []wire.HeaderPair
}

func (h *headerFlags) String() string {
	if h == nil || len(h.pairs) == 0 {
		return ""
	}
	parts := make([]string, len(h.pairs))
	for i, p := range h.pairs {
		parts[i] = p[0] + ": " + p[1]
	}
	return strings.Join(parts, ", ")
}

func (h *headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("invalid header %q, expected \"Name: value\"", value)
	}
	h.pairs = append(h.pairs, wire.HeaderPair{strings.TrimSpace(name), strings.TrimSpace(val)})
	return nil
}
