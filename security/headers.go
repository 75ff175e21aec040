package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets standard security headers on OAuth responses.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	// Prevent clickjacking
	w.Header().Set("X-Frame-Options", "DENY")

	// Prevent MIME type sniffing
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Strict policy: OAuth endpoints serve JSON and redirects only
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// Don't leak referrer information
	w.Header().Set("Referrer-Policy", "no-referrer")

	// Enforce HTTPS when the server itself is served over HTTPS
	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}
