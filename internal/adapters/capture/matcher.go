package capture

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Matcher decides per request whether it is captured.
type Matcher interface {
	CanHandle(r *http.Request) bool
	String() string
}

// SchemeMatcher accepts plain http and https requests.
type SchemeMatcher struct{}

func (SchemeMatcher) CanHandle(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	s := strings.ToLower(r.URL.Scheme)
	return s == "http" || s == "https"
}

func (SchemeMatcher) String() string { return "scheme in [http https]" }

// AllowListMatcher narrows capture to the application's own traffic: an http(s)
// request matches when its host is allowed or it carries the identifying header.
// Deny suffixes win over everything.
type AllowListMatcher struct {
	AllowSuffix []string
	DenySuffix  []string
	HeaderName  string
	HeaderValue string // empty: presence of HeaderName is enough
}

// NewMatcher returns the default SchemeMatcher unless an allow-list is given.
// header is either "Name" or "Name=value".
func NewMatcher(allowHosts []string, header string) Matcher {
	if len(allowHosts) == 0 && strings.TrimSpace(header) == "" {
		return SchemeMatcher{}
	}
	m := AllowListMatcher{AllowSuffix: allowHosts}
	if name, value, ok := strings.Cut(header, "="); ok {
		m.HeaderName, m.HeaderValue = strings.TrimSpace(name), strings.TrimSpace(value)
	} else {
		m.HeaderName = strings.TrimSpace(header)
	}
	return m
}

func (m AllowListMatcher) CanHandle(r *http.Request) bool {
	if !(SchemeMatcher{}).CanHandle(r) {
		return false
	}
	host := strings.ToLower(r.URL.Hostname())
	for _, d := range m.DenySuffix {
		if hostMatches(host, d) {
			return false
		}
	}
	for _, a := range m.AllowSuffix {
		if hostMatches(host, a) {
			return true
		}
	}
	if m.HeaderName != "" {
		if v := r.Header.Get(m.HeaderName); v != "" {
			return m.HeaderValue == "" || strings.EqualFold(v, m.HeaderValue)
		}
	}
	return false
}

func (m AllowListMatcher) String() string {
	var parts []string
	if len(m.AllowSuffix) > 0 {
		parts = append(parts, fmt.Sprintf("host suffix in %v", m.AllowSuffix))
	}
	if m.HeaderName != "" {
		if m.HeaderValue != "" {
			parts = append(parts, fmt.Sprintf("header %s=%s", m.HeaderName, m.HeaderValue))
		} else {
			parts = append(parts, "header "+m.HeaderName+" present")
		}
	}
	s := "scheme in [http https] and (" + strings.Join(parts, " or ") + ")"
	if len(m.DenySuffix) > 0 {
		s += fmt.Sprintf(" and host suffix not in %v", m.DenySuffix)
	}
	return s
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(r *http.Request) bool

func (f MatcherFunc) CanHandle(r *http.Request) bool { return f(r) }
func (f MatcherFunc) String() string                 { return "custom" }

func hostMatches(host, suffix string) bool {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix == "" || host == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(suffix); err == nil {
		suffix = h
	}
	if host == strings.TrimPrefix(suffix, ".") {
		return true
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return strings.HasSuffix(host, suffix)
}
