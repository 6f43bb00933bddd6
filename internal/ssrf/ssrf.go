// Package ssrf implements host/scheme validation and private-IP blocking
// for the request mediator's egress filter.
package ssrf

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// IsSchemeAllowed reports whether s is an outbound-dispatchable scheme.
func IsSchemeAllowed(s string) bool {
	return s == "http" || s == "https"
}

// IsHostAllowed reports whether host equals or is a subdomain of some entry
// in allowlist, after case-folding and trailing-dot normalization on both
// sides. An empty allowlist always denies.
func IsHostAllowed(host string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return false
	}
	host = normalizeHost(host)
	for _, entry := range allowlist {
		entry = normalizeHost(entry)
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSuffix(h, "."))
}

// EnsurePublicHost resolves host and verifies that every address it
// could dispatch to is public. For an IP literal host, the literal itself
// is checked. Called before dispatch and again before following each
// redirect, using the post-resolution address set, to defeat DNS rebinding
// and redirect-based lateral access.
func EnsurePublicHost(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("missing host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if !IsPublicIP(ip) {
			return fmt.Errorf("blocked ip %s", ip)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("dns failed: %w", err)
	}
	for _, addr := range addrs {
		if !IsPublicIP(addr.IP) {
			return fmt.Errorf("blocked ip %s", addr.IP)
		}
	}
	return nil
}

// IsPublicIP reports whether ip is routable on the public internet.
func IsPublicIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return isPublicIPv4(ip4)
	}
	return isPublicIPv6(ip)
}

func isPublicIPv4(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.Equal(net.IPv4bcast) {
		return false
	}
	// CGNAT: 100.64.0.0/10 — first octet 100, top two bits of second octet 01.
	if ip[0] == 100 && ip[1]&0b1100_0000 == 0b0100_0000 {
		return false
	}
	return true
}

func isPublicIPv6(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() ||
		ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return false
	}
	return true
}
