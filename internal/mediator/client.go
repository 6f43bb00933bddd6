package mediator

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient builds the outbound client used to dispatch mediated
// requests. Redirects are never followed automatically: the mediator's own
// dispatch loop re-validates scheme, allowlist and SSRF guard on every hop,
// so the stdlib redirect machinery must stay out of the way.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}
