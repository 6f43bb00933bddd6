//go:build linux

package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen binds a vsock (cid, port) socket and wraps it as a net.Listener.
// This is the preferred transport between a sandboxed guest and the
// host-resident daemon; see transport_other.go for the non-Linux fallback.
func Listen(cfg Config) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("vsock socket: %w", err)
	}

	sa := &unix.SockaddrVM{CID: cfg.CID, Port: cfg.Port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vsock bind cid=%d port=%d: %w", cfg.CID, cfg.Port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vsock listen: %w", err)
	}

	// net.FileListener dups the fd into its own net.Conn machinery, so the
	// os.File wrapper used only to hand it off is closed immediately after.
	file := os.NewFile(uintptr(fd), fmt.Sprintf("vsock:%d:%d", cfg.CID, cfg.Port))
	listener, err := net.FileListener(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("vsock file listener: %w", err)
	}
	return listener, nil
}

// Dial connects to a vsock (cid, port) endpoint and wraps it as a net.Conn.
func Dial(cfg Config) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("vsock socket: %w", err)
	}

	sa := &unix.SockaddrVM{CID: cfg.CID, Port: cfg.Port}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("vsock connect cid=%d port=%d: %w", cfg.CID, cfg.Port, err)
	}

	file := os.NewFile(uintptr(fd), fmt.Sprintf("vsock:%d:%d", cfg.CID, cfg.Port))
	conn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("vsock file conn: %w", err)
	}
	return conn, nil
}
