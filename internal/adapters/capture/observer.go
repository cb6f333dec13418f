package capture

import (
	"fmt"
	"net/http"
)

// Observer is the event-subscription variant: clients that expose lifecycle
// hooks report "request started", "response parsed" and "request finished"
// and no second round-trip is made. Events for one request share an id chosen
// by the client. A successful request must deliver ResponseParsed before
// RequestFinished; finishing without a parsed response records an error.
type Observer struct {
	rec     *Recorder
	matcher Matcher
}

func NewObserver(rec *Recorder, m Matcher) *Observer {
	if m == nil {
		m = SchemeMatcher{}
	}
	return &Observer{rec: rec, matcher: m}
}

func (o *Observer) Name() string     { return SourceEvents }
func (o *Observer) Describe() string { return fmt.Sprintf("lifecycle events, matching %s", o.matcher) }

func (o *Observer) RequestStarted(id string, req *http.Request, body []byte) {
	defer o.rec.guard("request_started")
	if !o.rec.Active() || !o.matcher.CanHandle(req) {
		return
	}
	body, truncated := limitBody(body, o.rec.MaxBodyBytes())
	o.rec.Begin(SourceEvents, id, o.rec.BuildRequest(req, body, truncated))
}

func (o *Observer) ResponseParsed(id string, resp *http.Response, body []byte) {
	defer o.rec.guard("response_parsed")
	body, truncated := limitBody(body, o.rec.MaxBodyBytes())
	o.rec.Attach(id, o.rec.BuildResponse(resp, body, truncated))
}

// RequestFinished completes id. A non-nil err, cancellation included, is
// recorded as the transaction's error.
func (o *Observer) RequestFinished(id string, err error) {
	defer o.rec.guard("request_finished")
	if err != nil {
		failure := ErrorFrom(err)
		o.rec.Finish(id, nil, &failure)
		return
	}
	o.rec.Finish(id, nil, nil)
}
