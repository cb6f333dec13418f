package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"http-inspector/internal/domain"
)

type cacheMeta struct {
	Status     string            `json:"status"` // HIT/MISS/REVALIDATED/UNKNOWN
	Directives map[string]string `json:"directives,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	Age        int               `json:"age,omitempty"`
}

type corsMeta struct {
	Ok             bool     `json:"ok"`
	Reason         string   `json:"reason,omitempty"`
	AllowedOrigin  string   `json:"allowedOrigin,omitempty"`
	AllowedMethods []string `json:"allowedMethods,omitempty"`
	AllowedHeaders []string `json:"allowedHeaders,omitempty"`
	Vary           string   `json:"vary,omitempty"`
}

func computeCacheMeta(status int, hdr map[string]string) *cacheMeta {
	if len(hdr) == 0 {
		return &cacheMeta{Status: "UNKNOWN"}
	}
	age, _ := strconv.Atoi(getFold(hdr, "Age"))
	st := "MISS"
	switch {
	case status == http.StatusNotModified:
		st = "REVALIDATED"
	case age > 0:
		st = "HIT"
	}
	return &cacheMeta{
		Status:     st,
		Directives: parseCacheControl(getFold(hdr, "Cache-Control")),
		ETag:       getFold(hdr, "ETag"),
		Age:        age,
	}
}

func parseCacheControl(s string) map[string]string {
	if s == "" {
		return nil
	}
	res := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if k, v, ok := strings.Cut(p, "="); ok {
			res[strings.ToLower(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), "\"")
		} else {
			res[strings.ToLower(p)] = "true"
		}
	}
	return res
}

// computeCORSMeta checks a cross-origin exchange against the response's
// Access-Control-* headers. Masked header values are compared as-is.
func computeCORSMeta(method string, req, resp map[string]string, isPreflight bool) *corsMeta {
	origin := getFold(req, "Origin")
	if origin == "" {
		return &corsMeta{Ok: true, Reason: "no origin"}
	}
	m := &corsMeta{
		AllowedOrigin:  getFold(resp, "Access-Control-Allow-Origin"),
		AllowedMethods: csvToSlice(getFold(resp, "Access-Control-Allow-Methods")),
		AllowedHeaders: csvToSlice(getFold(resp, "Access-Control-Allow-Headers")),
		Vary:           getFold(resp, "Vary"),
	}
	originOk := m.AllowedOrigin == "*" || m.AllowedOrigin == origin
	if isPreflight {
		methodOk := containsFold(m.AllowedMethods, getFold(req, "Access-Control-Request-Method"))
		headersOk := allAllowedFold(m.AllowedHeaders, csvToSlice(getFold(req, "Access-Control-Request-Headers")))
		m.Ok = originOk && methodOk && headersOk
		switch {
		case !originOk:
			m.Reason = "origin"
		case !methodOk:
			m.Reason = "method"
		case !headersOk:
			m.Reason = "headers"
		}
		return m
	}
	methodOk := len(m.AllowedMethods) == 0 || containsFold(m.AllowedMethods, method)
	m.Ok = originOk && methodOk
	switch {
	case !originOk:
		m.Reason = "origin"
	case !methodOk:
		m.Reason = "method"
	}
	return m
}

// classifyError gives failed transactions a coarse class for UI badges.
func classifyError(e domain.Error) string {
	if e.Domain == domain.DomainNetwork {
		switch e.Code {
		case domain.CodeTimedOut:
			return "TIMEOUT"
		case domain.CodeCannotFindHost:
			return "DNS"
		case domain.CodeSecureConnection:
			return "TLS"
		case domain.CodeCannotConnect, domain.CodeNotConnected:
			return "CONNECT"
		case domain.CodeConnectionLost:
			return "RST"
		case domain.CodeCancelled:
			return "CANCEL"
		case domain.CodeBadServerResponse:
			return "PROTOCOL"
		}
	}
	m := strings.ToLower(e.Message)
	switch {
	case strings.Contains(m, "deadline exceeded") || strings.Contains(m, "timeout") || strings.Contains(m, "timed out"):
		return "TIMEOUT"
	case strings.Contains(m, "no such host") || strings.Contains(m, "could not be found"):
		return "DNS"
	case strings.Contains(m, "x509") || strings.Contains(m, "certificate") || strings.Contains(m, "tls") || strings.Contains(m, "ssl"):
		return "TLS"
	case strings.Contains(m, "connection refused") || strings.Contains(m, "offline"):
		return "CONNECT"
	case strings.Contains(m, "connection reset") || strings.Contains(m, "connection was lost"):
		return "RST"
	case strings.Contains(m, "cancel"):
		return "CANCEL"
	default:
		return "ERROR"
	}
}

func allAllowedFold(allowed, requested []string) bool {
	for _, r := range requested {
		if !containsFold(allowed, r) {
			return false
		}
	}
	return true
}

func getFold(h map[string]string, key string) string {
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func csvToSlice(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(arr []string, val string) bool {
	for _, a := range arr {
		if strings.EqualFold(a, val) {
			return true
		}
	}
	return false
}
