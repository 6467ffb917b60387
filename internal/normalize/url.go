// Package normalize canonicalizes the identity attributes of store records:
// URLs, domains, usernames and timestamps.
package normalize

import (
	"net/url"
	"strings"
)

// DefaultScheme is used for URLs that carry no scheme.
const DefaultScheme = "https"

// Normalizer canonicalizes URLs. The zero value keeps a leading "www." label.
type Normalizer struct {
	StripWWW bool
}

// New returns a Normalizer.
func New(stripWWW bool) Normalizer {
	return Normalizer{StripWWW: stripWWW}
}

// URL returns scheme://host/path with the host lowercased, query, fragment
// and user-info dropped, and every trailing slash removed from the path.
// The result is stable under repeated normalization. Input that cannot be
// parsed is returned trimmed.
func (n Normalizer) URL(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = DefaultScheme
	}
	host := n.stripWWW(strings.ToLower(u.Host))
	path := strings.TrimRight(u.EscapedPath(), "/")
	return scheme + "://" + host + path
}

// Domain returns the lowercased hostname (port excluded) or "" when raw has none.
func (n Normalizer) Domain(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return ""
	}
	return n.stripWWW(strings.ToLower(u.Hostname()))
}

// IsLocal reports whether raw points at a loopback or .local host.
func (n Normalizer) IsLocal(raw string) bool {
	u, ok := parse(raw)
	if !ok {
		return false
	}
	return IsLocalHost(u.Hostname())
}

// IsLocalHost reports whether host is localhost, 127.0.0.1 or ends in ".local".
func IsLocalHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	return host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".local")
}

func (n Normalizer) stripWWW(host string) string {
	if n.StripWWW {
		for strings.HasPrefix(host, "www.") {
			host = host[len("www."):]
		}
	}
	return host
}

func parse(raw string) (*url.URL, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if !strings.Contains(s, "://") {
		s = DefaultScheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}
