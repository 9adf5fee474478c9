// Package endpoint validates the base URLs of remote collaborators and
// scrubs credentials from anything they send back.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Policy describes which base URLs a remote adapter may talk to.
type Policy struct {
	// Setting names the config/env key in error messages.
	Setting string
	Default string
	// DefaultHosts applies when no hosts are configured. Empty means any host.
	DefaultHosts []string
	// LoopbackHTTP permits plain http to localhost for self-hosted services.
	LoopbackHTTP bool
}

func (p Policy) Normalize(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = p.Default
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate requires an absolute URL without userinfo, query or fragment,
// over https (or loopback http when allowed) to an allowed host.
func (p Policy) Validate(baseURL string, allowedHosts []string) error {
	baseURL = p.Normalize(baseURL)
	name := p.Setting
	if name == "" {
		name = "base URL"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid %s %q: absolute URL with host is required", name, baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid %s %q: userinfo is not allowed", name, baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid %s %q: query and fragment are not allowed", name, baseURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("invalid %s %q: host is required", name, baseURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !p.LoopbackHTTP || !isLoopback(host) {
			return fmt.Errorf("invalid %s %q: https is required", name, baseURL)
		}
	default:
		return fmt.Errorf("invalid %s %q: https is required", name, baseURL)
	}

	allowed := NormalizeHosts(allowedHosts)
	if len(allowed) == 0 {
		allowed = NormalizeHosts(p.DefaultHosts)
	}
	if len(allowed) == 0 {
		return nil
	}
	if _, ok := allowed[host]; !ok {
		return fmt.Errorf("invalid %s %q: host %q is not allowed", name, baseURL, host)
	}
	return nil
}

// NormalizeHosts lowercases entries and strips schemes, ports and slashes.
func NormalizeHosts(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}

// SplitHosts parses a comma separated host list.
func SplitHosts(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

// Redact removes the given secrets and anything shaped like a credential.
func Redact(s string, secrets ...string) string {
	if s == "" {
		return s
	}
	out := s
	for _, k := range secrets {
		if k != "" {
			out = strings.ReplaceAll(out, k, "[REDACTED]")
		}
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

// Truncate cuts s to n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
