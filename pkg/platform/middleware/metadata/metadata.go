package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"attest/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and stores them in the context. Audit events recorded during the request
// take their origin from these values when the caller does not supply one.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		if device := DeviceSummary(ua); device != "" {
			ctx = requestcontext.WithDevice(ctx, device)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceSummary condenses a User-Agent into "Browser Version on OS".
// Bots are reported as "bot: name". Unparseable agents yield "".
func DeviceSummary(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if parsed.Bot() {
		return "bot: " + name
	}
	if name == "" {
		return ""
	}
	summary := name
	if version != "" {
		major, _, _ := strings.Cut(version, ".")
		summary += " " + major
	}
	if os := parsed.OS(); os != "" {
		summary += " on " + os
	}
	if parsed.Mobile() {
		summary += " (mobile)"
	}
	return summary
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 addresses arrive as "[::1]:port".
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
