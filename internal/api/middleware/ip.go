package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	apiContext "keyauth/internal/api/context"
)

// ProxyTrust lists the peers allowed to report the client address through
// X-Forwarded-For or X-Real-IP. Headers from any other peer are ignored.
type ProxyTrust struct {
	nets []*net.IPNet
}

// NewProxyTrust accepts plain IPs and CIDR blocks.
func NewProxyTrust(entries []string) (*ProxyTrust, error) {
	p := &ProxyTrust{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: invalid ip", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		p.nets = append(p.nets, n)
	}
	return p, nil
}

func (p *ProxyTrust) trusted(ip net.IP) bool {
	if p == nil || ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve returns the caller address. The connection peer is authoritative
// unless it is a trusted proxy; then X-Forwarded-For is walked from the right
// and the first hop that is not itself a trusted proxy wins.
func (p *ProxyTrust) Resolve(r *http.Request) string {
	peer := peerIP(r)
	if !p.trusted(net.ParseIP(peer)) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			client = hop
			if !p.trusted(ip) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// Handle resolves the caller address once and stores it for ClientIP.
func (p *ProxyTrust) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), apiContext.ClientIP, p.Resolve(r))
		next(w, r.WithContext(ctx))
	}
}

// ClientIP returns the address resolved by ProxyTrust.Handle, or the
// connection peer when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(apiContext.ClientIP).(string); ok && ip != "" {
		return ip
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
