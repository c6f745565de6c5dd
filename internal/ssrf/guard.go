// Package ssrf implements the SSRF Guard component: validating a URL as
// publicly reachable before the fetcher is allowed to touch it.
package ssrf

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

// metadataHostnames is the fixed denylist of cloud/instance metadata and
// loopback hostnames rejected regardless of DNS resolution.
var metadataHostnames = map[string]bool{
	"localhost":                true,
	"metadata":                 true,
	"metadata.google.internal": true,
	"169.254.169.254":          true,
	"instance-data":            true,
}

// Guard validates URLs against SSRF before they are fetched or enqueued.
type Guard struct {
	// Resolver is overridable for tests; defaults to net.DefaultResolver.
	Resolver *net.Resolver
	// LookupTimeout bounds the DNS resolution step.
	LookupTimeout time.Duration
}

// NewGuard returns a Guard with production defaults.
func NewGuard() *Guard {
	return &Guard{
		Resolver:      net.DefaultResolver,
		LookupTimeout: 5 * time.Second,
	}
}

// IsSafe implements spec §4.1's is_safe(url) -> (ok, reason) contract.
// DNS failures, timeouts and malformed URLs all classify as unsafe.
func (g *Guard) IsSafe(ctx context.Context, rawURL string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false, "unparseable url"
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "scheme not http(s)"
	}
	host := u.Hostname()
	if host == "" {
		return false, "missing hostname"
	}
	if metadataHostnames[strings.ToLower(host)] {
		return false, "denylisted hostname"
	}

	if ip := net.ParseIP(host); ip != nil {
		if !isPubliclyRoutable(ip) {
			return false, "address not publicly routable"
		}
		return true, ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.LookupTimeout)
	defer cancel()

	resolver := g.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(lookupCtx, host)
	if err != nil || len(addrs) == 0 {
		return false, "dns resolution failed"
	}
	for _, addr := range addrs {
		if !isPubliclyRoutable(addr.IP) {
			return false, "resolves to a non-public address"
		}
	}
	return true, ""
}

// isPubliclyRoutable rejects RFC1918, loopback, link-local, CGNAT,
// multicast, reserved and IPv6-equivalent ranges.
func isPubliclyRoutable(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.IsPrivate() {
		return false
	}
	// Carrier-grade NAT: 100.64.0.0/10
	if v4 := ip.To4(); v4 != nil {
		if v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
			return false
		}
		// 0.0.0.0/8, 192.0.0.0/24, 192.0.2.0/24, 198.18.0.0/15,
		// 198.51.100.0/24, 203.0.113.0/24, 240.0.0.0/4 reserved ranges.
		switch {
		case v4[0] == 0:
			return false
		case v4[0] == 192 && v4[1] == 0 && v4[2] == 0:
			return false
		case v4[0] == 192 && v4[1] == 0 && v4[2] == 2:
			return false
		case v4[0] == 198 && (v4[1] == 18 || v4[1] == 19):
			return false
		case v4[0] == 198 && v4[1] == 51 && v4[2] == 100:
			return false
		case v4[0] == 203 && v4[1] == 0 && v4[2] == 113:
			return false
		case v4[0] >= 240:
			return false
		}
		return true
	}
	// IPv6 unique local addresses (fc00::/7), the same range IsPrivate
	// already reports; kept as an explicit check.
	if len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc {
		return false
	}
	return true
}
