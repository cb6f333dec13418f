// Package capture turns observed HTTP request lifecycles into transactions.
//
// Three interception variants share one Recorder: the Transport tap wraps an
// http.RoundTripper, the Observer (and the CDPObserver built on it) consumes
// lifecycle events from clients that expose them, and Recorder.Capture records
// an already completed exchange. The Recorder owns start-time correlation and
// header redaction, so redacted values never leave this package.
package capture

import (
	"fmt"
	"mime"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"http-inspector/internal/domain"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/pkg/shared/redact"
)

// Sink receives every transaction the recorder produces, pending ones included.
type Sink func(domain.Transaction)

// Source labels which interception variant produced a transaction.
const (
	SourceTransport = "transport"
	SourceEvents    = "events"
	SourceCDP       = "cdp"
	SourceManual    = "manual"
)

type Options struct {
	RedactHeaders []string
	MaxBodyBytes  int // <= 0 keeps bodies whole
	Logger        *zerolog.Logger
	Metrics       *obs.Metrics
	Now           func() time.Time
	NewID         func() string
}

type pendingRequest struct {
	tx       domain.Transaction
	source   string
	response *domain.Response
	timings  *domain.Timings
}

// Recorder correlates request starts with their completions.
//
// Pending entries are removed when their transaction is finished. A request the
// host stack silently drops never finishes, and its entry stays until process
// exit; Pending reports how many such entries exist.
type Recorder struct {
	sink    Sink
	redact  redact.Set
	maxBody int
	logger  *zerolog.Logger
	metrics *obs.Metrics
	now     func() time.Time
	newID   func() string

	active atomic.Bool

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func NewRecorder(sink Sink, o Options) *Recorder {
	r := &Recorder{
		sink:    sink,
		redact:  redact.NewSet(o.RedactHeaders...),
		maxBody: o.MaxBodyBytes,
		logger:  o.Logger,
		metrics: o.Metrics,
		now:     o.Now,
		newID:   o.NewID,
		pending: make(map[string]*pendingRequest),
	}
	if r.logger == nil {
		nop := zerolog.Nop()
		r.logger = &nop
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.NewString() }
	}
	return r
}

func (r *Recorder) Activate()    { r.active.Store(true) }
func (r *Recorder) Deactivate()  { r.active.Store(false) }
func (r *Recorder) Active() bool { return r.active.Load() }

// Pending returns the number of started requests awaiting completion.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// RedactedHeaders lists the header names masked at capture time.
func (r *Recorder) RedactedHeaders() []string { return r.redact.Names() }

// BuildRequest converts an outgoing request into its captured form.
func (r *Recorder) BuildRequest(req *http.Request, body []byte, truncated bool) domain.Request {
	u := ""
	if req.URL != nil {
		u = req.URL.String()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	out := domain.NewRequest(method, u, redact.Headers(req.Header, r.redact), body)
	out.Truncated = truncated
	return out
}

// BuildResponse converts a received response into its captured form.
func (r *Recorder) BuildResponse(resp *http.Response, body []byte, truncated bool) domain.Response {
	out := domain.NewResponse(resp.StatusCode, redact.Headers(resp.Header, r.redact), body, mimeType(resp.Header.Get("Content-Type")))
	out.Truncated = truncated
	return out
}

// RequestFromMap builds a captured request from pre-flattened headers.
func (r *Recorder) RequestFromMap(method, rawURL string, headers map[string]string, body []byte) domain.Request {
	return domain.NewRequest(method, rawURL, redact.Map(headers, r.redact), body)
}

// ResponseFromMap builds a captured response from pre-flattened headers.
func (r *Recorder) ResponseFromMap(status int, headers map[string]string, body []byte, mime string) domain.Response {
	return domain.NewResponse(status, redact.Map(headers, r.redact), body, mime)
}

// Begin records the start of the request identified by key and emits it as a
// pending transaction. It returns the transaction id. A still pending start
// under the same key is emitted as cancelled first.
func (r *Recorder) Begin(source, key string, req domain.Request) string {
	tx := domain.NewPending(r.newID(), req, r.now())
	r.mu.Lock()
	prev, dup := r.pending[key]
	r.pending[key] = &pendingRequest{tx: tx, source: source}
	r.mu.Unlock()
	if dup {
		r.logger.Debug().Str("key", key).Str("id", prev.tx.ID).Msg("request key reused before completion; previous start cancelled")
		superseded := domain.Error{Code: domain.CodeCancelled, Message: "superseded by a new request with the same key", Domain: domain.DomainNetwork}
		r.emit(prev.source, prev.tx.Fail(superseded, r.now()))
	} else {
		r.metrics.Pending(1)
	}
	r.emit(source, tx)
	return tx.ID
}

// Attach stages resp for the pending request key; the transaction is emitted
// by the following Finish.
func (r *Recorder) Attach(key string, resp domain.Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[key]
	if ok {
		p.response = &resp
	}
	return ok
}

// AttachTimings stages a timing breakdown for the pending request key.
func (r *Recorder) AttachTimings(key string, t domain.Timings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[key]; ok {
		p.timings = &t
	}
}

// Finish completes the pending request key. A non-nil failure wins; otherwise
// resp, or the response staged by Attach, completes it. Finishing with neither
// records a bad-server-response error. Unknown keys are ignored.
func (r *Recorder) Finish(key string, resp *domain.Response, failure *domain.Error) (domain.Transaction, bool) {
	r.mu.Lock()
	p, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	if !ok {
		return domain.Transaction{}, false
	}
	r.metrics.Pending(-1)

	if resp == nil {
		resp = p.response
	}
	tx := r.terminal(p.tx, resp, failure)
	if p.timings != nil {
		tx = tx.WithTimings(*p.timings)
	}
	r.emit(p.source, tx)
	return tx, true
}

// Capture records an exchange that completed outside any observed lifecycle.
// Without startedAt the transaction is stamped now and carries no duration.
// Manual capture does not depend on the recorder being active.
func (r *Recorder) Capture(req domain.Request, resp *domain.Response, failure *domain.Error, startedAt *time.Time) domain.Transaction {
	ts := r.now()
	if startedAt != nil {
		ts = *startedAt
	}
	req.Headers = redact.Map(req.Headers, r.redact)
	if resp != nil {
		masked := *resp
		masked.Headers = redact.Map(resp.Headers, r.redact)
		resp = &masked
	}
	tx := r.terminal(domain.NewPending(r.newID(), req, ts), resp, failure)
	if startedAt == nil {
		tx.Duration = nil
	}
	r.emit(SourceManual, tx)
	return tx
}

func (r *Recorder) terminal(tx domain.Transaction, resp *domain.Response, failure *domain.Error) domain.Transaction {
	end := r.now()
	switch {
	case failure != nil:
		return tx.Fail(*failure, end)
	case resp != nil:
		return tx.Complete(*resp, end)
	default:
		return tx.Fail(domain.Error{Code: domain.CodeBadServerResponse, Message: "request finished without a response", Domain: domain.DomainNetwork}, end)
	}
}

// emit hands tx to the sink. Nothing raised by the sink reaches the caller.
func (r *Recorder) emit(source string, tx domain.Transaction) {
	defer func() {
		if v := recover(); v != nil {
			r.metrics.CaptureError("emit")
			r.logger.Error().Str("id", tx.ID).Str("url", tx.Request.URL).Str("panic", fmt.Sprint(v)).Msg("transaction sink panicked")
		}
	}()
	switch {
	case tx.IsPending():
		r.metrics.Captured(source, "pending")
	case tx.HasError():
		r.metrics.Captured(source, "error")
	default:
		r.metrics.Captured(source, "ok")
	}
	if r.sink != nil {
		r.sink(tx)
	}
}

func mimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}

// MaxBodyBytes is the per-body capture limit; <= 0 means unlimited.
func (r *Recorder) MaxBodyBytes() int { return r.maxBody }

// AttachBody sets the body of the response staged for key.
func (r *Recorder) AttachBody(key string, body []byte) bool {
	body, truncated := limitBody(body, r.maxBody)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[key]
	if !ok || p.response == nil {
		return false
	}
	resp := domain.NewResponse(p.response.StatusCode, p.response.Headers, body, derefString(p.response.MimeType))
	resp.Truncated = truncated
	p.response = &resp
	return true
}

// guard keeps a capture-side panic from reaching the host stack.
func (r *Recorder) guard(stage string) {
	if v := recover(); v != nil {
		r.metrics.CaptureError(stage)
		r.logger.Error().Str("stage", stage).Str("panic", fmt.Sprint(v)).Msg("capture failed")
	}
}

func limitBody(b []byte, max int) ([]byte, bool) {
	if max > 0 && len(b) > max {
		return b[:max], true
	}
	return b, false
}

// Interceptor is one interception variant wired to a Recorder.
type Interceptor interface {
	Name() string
	Describe() string
}

var (
	_ Interceptor = (*Transport)(nil)
	_ Interceptor = (*Observer)(nil)
	_ Interceptor = (*CDPObserver)(nil)
)
