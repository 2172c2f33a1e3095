package proxy

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
)

// ForwardConfig controls how the proxy trusts the forwarded-for header.
// With an empty Header the transport peer address is always used.
type ForwardConfig struct {
	Header         string
	TrustedProxies []string
	Enforce        bool
}

// ClientAddress determines the real client IP of a request. When a forward
// header is configured and present, its first address is accepted only if
// every proxy the request passed through is trusted and the transport peer
// is itself a trusted proxy or loopback. An untrusted chain is an error,
// never a silent fallback to the peer address.
func ClientAddress(r *http.Request, cfg *ForwardConfig) (string, error) {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, as some test setups produce
		peer = r.RemoteAddr
	}
	if peer == "" {
		return "", fmt.Errorf("transport peer address is empty")
	}

	if cfg == nil || cfg.Header == "" {
		return peer, nil
	}

	value := r.Header.Get(cfg.Header)
	if value == "" {
		if cfg.Enforce {
			return "", fmt.Errorf("forward header %s enforced but not present", cfg.Header)
		}
		return peer, nil
	}

	addresses := splitNames(strings.ReplaceAll(value, " ", ""))
	if len(addresses) == 0 {
		return "", fmt.Errorf("forward header %s is empty", cfg.Header)
	}

	if len(cfg.TrustedProxies) == 0 {
		return "", fmt.Errorf("forward header %s present but no trusted proxies configured", cfg.Header)
	}

	for _, hop := range addresses[1:] {
		if !slices.Contains(cfg.TrustedProxies, hop) {
			return "", fmt.Errorf("untrusted proxy %s in forward chain", hop)
		}
	}

	ip := net.ParseIP(peer)
	if !slices.Contains(cfg.TrustedProxies, peer) && (ip == nil || !ip.IsLoopback()) {
		return "", fmt.Errorf("transport peer %s is not a trusted proxy", peer)
	}

	return addresses[0], nil
}
