package admission

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolve o IP do cliente na ordem fixa:
// primeiro IP do X-Forwarded-For (se não for placeholder), X-Real-IP,
// endereço do peer e por fim o sentinela "unknown" — que ainda assim é
// rate-limitado como bucket próprio.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// múltiplos proxies: o primeiro IP é o cliente original
		first := xff
		if i := strings.Index(xff, ","); i != -1 {
			first = xff[:i]
		}
		first = strings.TrimSpace(first)
		if first != "" && !strings.EqualFold(first, "unknown") {
			return first
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" && !strings.EqualFold(ip, "unknown") {
		return ip
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
