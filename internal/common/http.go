package common

import (
	"net"
	"net/http"
	"strings"
)

// CartTokenHeader carries the anonymous cart access token.
const CartTokenHeader = "X-Cart-Token"

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// CartToken returns the anonymous cart token from the header or the ?token= query parameter.
func CartToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if tok := strings.TrimSpace(r.Header.Get(CartTokenHeader)); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// RateLimitKey identifies the caller for rate limiting: the account when
// authenticated, the client IP otherwise.
func RateLimitKey(r *http.Request) string {
	if id, ok := AccountID(r.Context()); ok {
		return "account:" + id
	}
	return "ip:" + ClientIP(r)
}
