package capture

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/chromedp/cdproto/network"

	"http-inspector/internal/domain"
)

// CDPObserver feeds DevTools Network domain events into the recorder, keyed by
// the protocol's RequestID. Register Listen with chromedp.ListenTarget, or call
// the On* methods directly when the response body is fetched separately.
type CDPObserver struct {
	rec     *Recorder
	matcher Matcher
}

func NewCDPObserver(rec *Recorder, m Matcher) *CDPObserver {
	if m == nil {
		m = SchemeMatcher{}
	}
	return &CDPObserver{rec: rec, matcher: m}
}

func (c *CDPObserver) Name() string     { return SourceCDP }
func (c *CDPObserver) Describe() string { return fmt.Sprintf("devtools network events, matching %s", c.matcher) }

// Listen dispatches a raw protocol event. Bodies are not available here, so
// responses finished through Listen carry headers only.
func (c *CDPObserver) Listen(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		c.OnRequestWillBeSent(e)
	case *network.EventResponseReceived:
		c.OnResponseReceived(e)
	case *network.EventLoadingFinished:
		c.OnLoadingFinished(e, nil)
	case *network.EventLoadingFailed:
		c.OnLoadingFailed(e)
	}
}

func (c *CDPObserver) OnRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	defer c.rec.guard("cdp_request")
	if ev == nil || ev.Request == nil {
		return
	}
	key := string(ev.RequestID)
	// a redirect reuses the request id; the hop that redirected is complete
	if ev.RedirectResponse != nil {
		hop := c.response(ev.RedirectResponse)
		c.rec.Finish(key, &hop, nil)
	}
	if !c.rec.Active() {
		return
	}
	headers := headerMap(ev.Request.Headers)
	probe, err := http.NewRequest(ev.Request.Method, ev.Request.URL, nil)
	if err != nil {
		return
	}
	for k, v := range headers {
		probe.Header.Set(k, v)
	}
	if !c.matcher.CanHandle(probe) {
		return
	}
	body, truncated := limitBody(postData(ev.Request), c.rec.MaxBodyBytes())
	req := c.rec.RequestFromMap(ev.Request.Method, ev.Request.URL, headers, body)
	req.Truncated = truncated
	c.rec.Begin(SourceCDP, key, req)
}

func (c *CDPObserver) OnResponseReceived(ev *network.EventResponseReceived) {
	defer c.rec.guard("cdp_response")
	if ev == nil || ev.Response == nil {
		return
	}
	c.rec.Attach(string(ev.RequestID), c.response(ev.Response))
}

// OnLoadingFinished completes the request; body is the fetched response body
// or nil.
func (c *CDPObserver) OnLoadingFinished(ev *network.EventLoadingFinished, body []byte) {
	defer c.rec.guard("cdp_finished")
	if ev == nil {
		return
	}
	key := string(ev.RequestID)
	if body != nil {
		c.rec.AttachBody(key, body)
	}
	c.rec.Finish(key, nil, nil)
}

func (c *CDPObserver) OnLoadingFailed(ev *network.EventLoadingFailed) {
	defer c.rec.guard("cdp_failed")
	if ev == nil {
		return
	}
	failure := ErrorFromText(ev.ErrorText, ev.Canceled)
	c.rec.Finish(string(ev.RequestID), nil, &failure)
}

func (c *CDPObserver) response(r *network.Response) domain.Response {
	return c.rec.ResponseFromMap(int(r.Status), headerMap(r.Headers), nil, r.MimeType)
}

func postData(r *network.Request) []byte {
	if !r.HasPostData || len(r.PostDataEntries) == 0 {
		return nil
	}
	var out []byte
	for _, entry := range r.PostDataEntries {
		if entry == nil || entry.Bytes == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			out = append(out, entry.Bytes...)
			continue
		}
		out = append(out, decoded...)
	}
	return out
}

func headerMap(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
