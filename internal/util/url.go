// url.go — URL parsing utilities: path extraction, origin extraction, and
// host extraction for hostname-only failure logging (§4.8 never logs a
// full URL, only the hostname).
package util

import (
	"net/url"
	"strings"
)

// ExtractURLPath extracts the path portion from a URL string, stripping query parameters.
// Returns "/" if the URL has no path component.
// Returns the input unchanged if it cannot be parsed.
func ExtractURLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := parsed.Path
	if path == "" {
		return "/"
	}
	return path
}

// ExtractOrigin extracts the origin (scheme://host[:port]) from a URL.
// Returns empty string for data: URLs, blob: URLs (after extracting nested origin),
// and malformed URLs.
func ExtractOrigin(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return ""
	}
	rawURL = strings.TrimPrefix(rawURL, "blob:")

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// ExtractHost returns just the hostname (no scheme, no port) from a URL,
// or the input unchanged if parsing fails. Used wherever a URL must be
// logged but PII/query-string leakage must be avoided.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return rawURL
	}
	return parsed.Hostname()
}

// TLD returns the last dot-separated label of a hostname, lowercased.
// Used by the cookie machine's region heuristic (.de/.fr/.. -> EU, .uk -> UK).
func TLD(host string) string {
	host = strings.TrimSuffix(host, ".")
	idx := strings.LastIndex(host, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(host[idx+1:])
}
