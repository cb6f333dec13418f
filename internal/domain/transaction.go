package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Request is a captured outbound HTTP request. Values are immutable once built.
type Request struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      []byte            `json:"body,omitempty"`
	BodyText  *string           `json:"bodyText,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
}

// Response is the captured answer to a Request.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body,omitempty"`
	BodyText   *string           `json:"bodyText,omitempty"`
	MimeType   *string           `json:"mimeType,omitempty"`
	Truncated  bool              `json:"truncated,omitempty"`
}

// Error describes a failed request. Code only has meaning within Domain.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Domain  string `json:"domain"`
}

func (e Error) Error() string { return fmt.Sprintf("%s(%d): %s", e.Domain, e.Code, e.Message) }

// Timings captures coarse-grained milestones observed by the transport tap.
type Timings struct {
	DNS     int64 `json:"dnsMs"`     // DNS resolve duration in ms
	Connect int64 `json:"connectMs"` // TCP connect duration in ms
	TLS     int64 `json:"tlsMs"`     // TLS handshake duration in ms
	TTFB    int64 `json:"ttfbMs"`    // time to first response byte in ms
}

// Transaction is one captured request with its outcome.
//
// A pending transaction has neither Response nor Error nor Duration. A terminal
// transaction has Duration set (unless its start time was unknown) and exactly
// one of Response or Error. State changes never mutate a stored value: Complete
// and Fail return a new Transaction with the same ID.
type Transaction struct {
	ID        string    `json:"id"`
	Request   Request   `json:"request"`
	Response  *Response `json:"response,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Duration is the elapsed time from Timestamp to completion, in seconds.
	Duration *float64 `json:"duration,omitempty"`
	Timings  *Timings `json:"timings,omitempty"`
}

// NewRequest builds a Request, uppercasing the method and decoding the body as
// UTF-8 text when possible. Headers and body are copied.
func NewRequest(method, rawURL string, headers map[string]string, body []byte) Request {
	return Request{
		Method:   strings.ToUpper(method),
		URL:      rawURL,
		Headers:  cloneHeaders(headers),
		Body:     cloneBytes(body),
		BodyText: DecodeText(body),
	}
}

// NewResponse builds a Response. An empty mimeType is recorded as absent.
func NewResponse(statusCode int, headers map[string]string, body []byte, mimeType string) Response {
	r := Response{
		StatusCode: statusCode,
		Headers:    cloneHeaders(headers),
		Body:       cloneBytes(body),
		BodyText:   DecodeText(body),
	}
	if mimeType != "" {
		r.MimeType = &mimeType
	}
	return r
}

// NewPending returns a pending transaction started at ts.
func NewPending(id string, req Request, ts time.Time) Transaction {
	return Transaction{ID: id, Request: req, Timestamp: ts}
}

// Complete returns a terminal copy of t carrying resp.
func (t Transaction) Complete(resp Response, finishedAt time.Time) Transaction {
	out := t
	out.Response = &resp
	out.Error = nil
	out.Duration = durationSince(t.Timestamp, finishedAt)
	return out
}

// Fail returns a terminal copy of t carrying err.
func (t Transaction) Fail(err Error, finishedAt time.Time) Transaction {
	out := t
	out.Response = nil
	out.Error = &err
	out.Duration = durationSince(t.Timestamp, finishedAt)
	return out
}

// WithTimings returns a copy of t with the given timing breakdown.
func (t Transaction) WithTimings(tm Timings) Transaction {
	out := t
	out.Timings = &tm
	return out
}

func (t Transaction) IsPending() bool { return t.Response == nil && t.Error == nil }

func (t Transaction) IsTerminal() bool { return !t.IsPending() }

func (t Transaction) HasError() bool { return t.Error != nil }

// StatusDescription is the short status shown in list views.
func (t Transaction) StatusDescription() string {
	switch {
	case t.Error != nil:
		return "Error: " + t.Error.Message
	case t.Response != nil:
		return fmt.Sprintf("%d", t.Response.StatusCode)
	default:
		return "Pending"
	}
}

// DisplayTitle is "<METHOD> <path>", falling back to the raw URL.
func (t Transaction) DisplayTitle() string {
	p := t.Request.URL
	if u, err := url.Parse(t.Request.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	return t.Request.Method + " " + p
}

// ShareText renders a plain-text summary suitable for copying out of the inspector.
func (t Transaction) ShareText() string {
	var b strings.Builder
	b.WriteString("HTTP Transaction Details\n\n")
	fmt.Fprintf(&b, "Request: %s %s\n", t.Request.Method, t.Request.URL)
	fmt.Fprintf(&b, "Timestamp: %s\n", t.Timestamp.UTC().Format(time.RFC3339Nano))
	if t.Duration != nil {
		fmt.Fprintf(&b, "Duration: %.3fs\n", *t.Duration)
	}
	switch {
	case t.Response != nil:
		fmt.Fprintf(&b, "Status: %d\n", t.Response.StatusCode)
		if t.Response.BodyText != nil && *t.Response.BodyText != "" {
			b.WriteString("\nResponse Body:\n")
			b.WriteString(*t.Response.BodyText)
			b.WriteString("\n")
		}
	case t.Error != nil:
		fmt.Fprintf(&b, "Error: %s (%s %d)\n", t.Error.Message, t.Error.Domain, t.Error.Code)
	default:
		b.WriteString("Status: Pending\n")
	}
	return b.String()
}

// DecodeText returns body as a string when it is non-empty valid UTF-8.
func DecodeText(body []byte) *string {
	if len(body) == 0 || !utf8.Valid(body) {
		return nil
	}
	s := string(body)
	return &s
}

func durationSince(start, end time.Time) *float64 {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	d := end.Sub(start).Seconds()
	if d < 0 {
		d = 0
	}
	return &d
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
