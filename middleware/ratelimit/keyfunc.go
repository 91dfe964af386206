package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"transit-gateway/middleware/ratelimit/domain"
)

// DefaultIPHeader é o header de IP real enviado pelo proxy reverso da frente.
const DefaultIPHeader = "X-Real-IP"

type KeyFunc func(r *http.Request) domain.Key

// DefaultKeyFunc identifica o cliente pelo endereço IP.
//
// Ordem: ipHeader (só se o valor for um IP válido), primeiro IP do
// X-Forwarded-For (se trustXFF), host do RemoteAddr.
func DefaultKeyFunc(ipHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) domain.Key {
		if ipHeader != "" {
			if ip, ok := parseIP(r.Header.Get(ipHeader)); ok {
				return ip
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip, ok := parseIP(first); ok {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return domain.Key(host)
		}
		if r.RemoteAddr != "" {
			return domain.Key(r.RemoteAddr)
		}
		return "unknown"
	}
}

func parseIP(v string) (domain.Key, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	return domain.Key(addr.Unmap().String()), true
}
