package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// skipExtensions are link targets that are never crawlable pages.
var skipExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".json": {}, ".xml": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".rar": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

// NormalizeURL canonicalizes a URL for dedup: lowercased scheme and
// host, fragment stripped, default port dropped, empty path set to "/",
// and a single trailing slash trimmed except on the root path. Only
// absolute http(s) URLs are accepted.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// Domain returns the lowercased hostname of a URL, without port.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SameSite reports whether two URLs share a registrable domain
// (eTLD+1), so www.example.com and blog.example.com are one site. When
// the registrable domain cannot be determined the hostnames are
// compared directly.
func SameSite(a, b string) bool {
	ha, hb := Domain(a), Domain(b)
	if ha == "" || hb == "" {
		return false
	}

	ra, errA := publicsuffix.EffectiveTLDPlusOne(ha)
	rb, errB := publicsuffix.EffectiveTLDPlusOne(hb)
	if errA != nil || errB != nil {
		return ha == hb
	}
	return ra == rb
}

// Crawlable reports whether a discovered link is worth enqueueing:
// normalizable and not an obvious asset download.
func Crawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, skip := skipExtensions[ext]; skip {
		return false
	}
	return true
}
