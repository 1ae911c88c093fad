// Package httputil holds request helpers shared by the API and stream handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// ClientIP returns the caller's address, used to key per-client stream limits.
// Proxy headers are read only when trustProxy is set, and only values that parse
// as an IP are accepted from them; anything else falls back to RemoteAddr.
// IPv4-mapped IPv6 addresses are reported in IPv4 form so one client has one key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := parseIP(first); ok {
				return ip
			}
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return host
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}

// RequestID returns the caller-supplied X-Request-ID, or a fresh UUID when the
// header is missing or unreasonably long.
func RequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.NewString()
}
