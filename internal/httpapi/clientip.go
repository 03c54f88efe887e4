package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ipResolver picks the client address used for throttling, audit and logs.
// Forwarded headers are honoured only when the direct peer is a trusted proxy.
type ipResolver struct {
	trusted []netip.Prefix
}

func newIPResolver(proxies []string) (*ipResolver, error) {
	res := &ipResolver{}
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("httpapi: trusted proxy %q: %w", raw, err)
			}
			res.trusted = append(res.trusted, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("httpapi: trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		res.trusted = append(res.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return res, nil
}

func (res *ipResolver) isTrusted(addr netip.Addr) bool {
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address unless it is a trusted proxy, in which
// case X-Forwarded-For is walked from the right, skipping further trusted
// hops, and X-Real-IP is the fallback.
func (res *ipResolver) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if len(res.trusted) == 0 {
		return peer
	}
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !res.isTrusted(peerAddr.Unmap()) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !res.isTrusted(addr) || i == 0 {
				return addr.String()
			}
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		if addr, err := netip.ParseAddr(xrip); err == nil {
			return addr.Unmap().String()
		}
	}
	return peer
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
