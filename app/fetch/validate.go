package fetch

import (
	"net"
	"net/url"
	"strings"

	"github.com/thewpminute/podloom/app/apperr"
)

// ValidateURL rejects URLs that must never be fetched: non-http(s)
// schemes and hosts resolving syntactically to loopback, link-local or
// unspecified addresses. DNS-based private-range detection is deliberately
// not attempted; CDN-fronted hosts make it a false-positive trap.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("url", "must not be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return apperr.Validation("url", "malformed URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperr.Validation("url", "must use http or https")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return apperr.Validation("url", "must have a hostname")
	}

	if isLocalhost(hostname) {
		return apperr.Validation("url", "loopback hosts are not permitted")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return apperr.Validation("url", "address is not publicly routable")
		}
	}

	return nil
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" || strings.HasSuffix(hostname, ".localhost")
}
