package capture

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	http2 "golang.org/x/net/http2"

	"http-inspector/internal/domain"
)

// Transport is the transparent tap: an http.RoundTripper that sends matched
// requests through a plain pass-through transport, returns the real outcome to
// the caller untouched, and records the exchange on the side.
type Transport struct {
	base    http.RoundTripper
	matcher Matcher
	rec     *Recorder
}

// NewTransport wraps base. A nil base gets NewPassThrough(false); a nil matcher
// gets SchemeMatcher.
func NewTransport(rec *Recorder, base http.RoundTripper, m Matcher) *Transport {
	if base == nil {
		base = NewPassThrough(false)
	}
	if m == nil {
		m = SchemeMatcher{}
	}
	return &Transport{base: base, matcher: m, rec: rec}
}

// NewPassThrough builds the non-intercepted transport used for the real call.
func NewPassThrough(insecureTLS bool) *http.Transport {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if insecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	// HTTP/2 for outbound HTTPS where possible; HTTP/1.1 otherwise
	_ = http2.ConfigureTransport(tr)
	return tr
}

func (t *Transport) Name() string     { return SourceTransport }
func (t *Transport) Describe() string { return fmt.Sprintf("transport tap, matching %s", t.matcher) }

// Client returns an http.Client whose requests go through the tap.
func (t *Transport) Client() *http.Client { return &http.Client{Transport: t} }

// Wrap returns a copy of c that routes through the tap, keeping c's other
// settings. c's own transport, if any, becomes the pass-through.
func (t *Transport) Wrap(c *http.Client) *http.Client {
	out := *c
	if c.Transport != nil && c.Transport != t {
		out.Transport = NewTransport(t.rec, c.Transport, t.matcher)
	} else {
		out.Transport = t
	}
	return &out
}

// CanHandle reports whether req would be captured right now.
func (t *Transport) CanHandle(req *http.Request) bool {
	return t.rec.Active() && t.matcher.CanHandle(req)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.CanHandle(req) {
		return t.base.RoundTrip(req)
	}
	out, id, trace, ok := t.begin(req)
	if !ok {
		return t.base.RoundTrip(out)
	}

	resp, err := t.base.RoundTrip(out)
	t.rec.AttachTimings(id, trace.timings())
	if err != nil {
		failure := ErrorFrom(err)
		t.rec.Finish(id, nil, &failure)
		return resp, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		captured := t.rec.BuildResponse(resp, nil, false)
		t.rec.Finish(id, &captured, nil)
		return resp, nil
	}
	headersOnly := t.rec.BuildResponse(resp, nil, false)
	resp.Body = newBodyTap(resp.Body, t.rec.MaxBodyBytes(), resp.ContentLength, func(body []byte, truncated bool, readErr error) {
		if readErr != nil {
			failure := ErrorFrom(readErr)
			t.rec.Finish(id, nil, &failure)
			return
		}
		captured := domain.NewResponse(headersOnly.StatusCode, headersOnly.Headers, body, derefString(headersOnly.MimeType))
		captured.Truncated = truncated
		t.rec.Finish(id, &captured, nil)
	})
	return resp, nil
}

// begin records the request start. Any capture failure falls back to sending
// the original request unobserved.
func (t *Transport) begin(req *http.Request) (out *http.Request, id string, trace *traceTimes, ok bool) {
	out = req
	defer func() {
		if v := recover(); v != nil {
			t.rec.metrics.CaptureError("begin")
			t.rec.logger.Error().Str("url", req.URL.String()).Str("panic", fmt.Sprint(v)).Msg("request capture failed")
			out, ok = req, false
		}
	}()
	sent, body, truncated, err := readRequestBody(req, t.rec.MaxBodyBytes())
	if err != nil {
		t.rec.metrics.CaptureError("request_body")
		t.rec.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("request body capture incomplete")
	}
	id = t.rec.newID()
	t.rec.Begin(SourceTransport, id, t.rec.BuildRequest(req, body, truncated))

	trace = &traceTimes{start: time.Now()}
	out = sent.WithContext(httptrace.WithClientTrace(sent.Context(), trace.clientTrace()))
	return out, id, trace, true
}

// traceTimes collects httptrace milestones; callbacks may fire on dialer goroutines.
type traceTimes struct {
	mu sync.Mutex

	start, firstByte  time.Time
	dns, dnsDone      time.Time
	conn, connDone    time.Time
	tlsStart, tlsDone time.Time
}

func (tt *traceTimes) clientTrace() *httptrace.ClientTrace {
	set := func(p *time.Time) {
		tt.mu.Lock()
		*p = time.Now()
		tt.mu.Unlock()
	}
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { set(&tt.dns) },
		DNSDone:              func(httptrace.DNSDoneInfo) { set(&tt.dnsDone) },
		ConnectStart:         func(string, string) { set(&tt.conn) },
		ConnectDone:          func(string, string, error) { set(&tt.connDone) },
		TLSHandshakeStart:    func() { set(&tt.tlsStart) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { set(&tt.tlsDone) },
		GotFirstResponseByte: func() { set(&tt.firstByte) },
	}
}

func (tt *traceTimes) timings() domain.Timings {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return domain.Timings{
		DNS:     durationMs(tt.dns, tt.dnsDone),
		Connect: durationMs(tt.conn, tt.connDone),
		TLS:     durationMs(tt.tlsStart, tt.tlsDone),
		TTFB:    durationMs(tt.start, tt.firstByte),
	}
}

func durationMs(from, to time.Time) int64 {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return int64(to.Sub(from) / time.Millisecond)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
