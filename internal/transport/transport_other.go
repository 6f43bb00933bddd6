//go:build !linux

package transport

import (
	"fmt"
	"net"
)

// Listen binds loopback TCP on hosts without vsock support.
func Listen(cfg Config) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
}

// Dial connects to loopback TCP on hosts without vsock support. The CID
// field is ignored; only the port addresses anything on this platform.
func Dial(cfg Config) (net.Conn, error) {
	return net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
}
