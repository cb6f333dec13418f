package redact

import (
	"net/http"
	"strings"
)

// Mask replaces the value of every redacted header.
const Mask = "***"

// DefaultHeaders are redacted when no explicit set is configured.
var DefaultHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// Set is a case-insensitive set of header names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Names returns the canonical form of every name in the set.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, http.CanonicalHeaderKey(n))
	}
	return out
}

// Headers flattens h into a single-valued map, masking redacted names.
// Multiple values are joined with ", " except Set-Cookie which uses "\n".
func Headers(h http.Header, s Set) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if s.Has(k) {
			out[k] = Mask
			continue
		}
		sep := ", "
		if strings.EqualFold(k, "Set-Cookie") {
			sep = "\n"
		}
		out[k] = strings.Join(v, sep)
	}
	return out
}

// Map masks redacted names in an already flattened header map.
func Map(h map[string]string, s Set) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s.Has(k) {
			out[k] = Mask
			continue
		}
		out[k] = v
	}
	return out
}
