// Package transport binds the listener the connection server accepts
// streams on: vsock on Linux hosts (the guest/daemon boundary this system
// is built for), loopback TCP everywhere else.
package transport

// Config is the endpoint to bind. CID and Port address a vsock socket;
// Port alone addresses the loopback TCP fallback.
type Config struct {
	CID  uint32
	Port uint32
}

// VMADDR_CID_ANY is the vsock wildcard CID: bind to any context ID the
// hypervisor routes to this host.
const VMADDR_CID_ANY = 0xffffffff

// VMADDR_CID_HOST is the well-known vsock CID a guest uses to reach its
// host, and is the client mode's default dial target.
const VMADDR_CID_HOST = 2

// DefaultConfig is the endpoint used when no CID/port override is supplied.
func DefaultConfig() Config {
	return Config{CID: VMADDR_CID_ANY, Port: 4040}
}

// DefaultDialConfig is the endpoint a client dials by default: the host
// CID, on the daemon's well-known port.
func DefaultDialConfig() Config {
	return Config{CID: VMADDR_CID_HOST, Port: 4040}
}
