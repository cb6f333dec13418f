package capture

import (
	"net/http"
	"testing"
	"time"

	"http-inspector/internal/domain"
	"http-inspector/pkg/shared/redact"
)

func TestRecorderBeginFinishReplacesByID(t *testing.T) {
	c := &collector{}
	clock := &fakeClock{now: time.Unix(1000, 0).UTC()}
	r := newTestRecorder(t, c, Options{Now: clock.Now})

	id := r.Begin(SourceEvents, "k1", domain.NewRequest("get", "https://api.test/v1", nil, nil))
	if r.Pending() != 1 {
		t.Fatalf("pending=%d, want 1", r.Pending())
	}
	clock.Advance(1500 * time.Millisecond)
	resp := domain.NewResponse(200, nil, []byte("ok"), "text/plain")
	tx, ok := r.Finish("k1", &resp, nil)
	if !ok {
		t.Fatalf("finish: key not found")
	}
	if r.Pending() != 0 {
		t.Fatalf("pending=%d after finish", r.Pending())
	}

	got := c.all()
	if len(got) != 2 {
		t.Fatalf("emitted %d transactions, want 2", len(got))
	}
	if !got[0].IsPending() || got[0].ID != id {
		t.Fatalf("first emission should be pending %s: %+v", id, got[0])
	}
	if tx.ID != id || tx.Response == nil || tx.Response.StatusCode != 200 {
		t.Fatalf("unexpected terminal: %+v", tx)
	}
	if tx.Duration == nil || *tx.Duration != 1.5 {
		t.Fatalf("duration=%v, want 1.5", tx.Duration)
	}
	if tx.Request.Method != "GET" {
		t.Fatalf("method not uppercased: %q", tx.Request.Method)
	}
}

func TestRecorderFinishUnknownKey(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{})
	if _, ok := r.Finish("missing", nil, nil); ok {
		t.Fatalf("unknown key should not finish")
	}
	if len(c.all()) != 0 {
		t.Fatalf("nothing should be emitted")
	}
}

func TestRecorderFinishWithoutResponseIsError(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{})
	r.Begin(SourceEvents, "k", domain.NewRequest("GET", "https://a.test", nil, nil))
	tx, _ := r.Finish("k", nil, nil)
	if tx.Error == nil || tx.Error.Code != domain.CodeBadServerResponse {
		t.Fatalf("want bad server response error, got %+v", tx.Error)
	}
}

func TestRecorderStagedResponseAndBody(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{MaxBodyBytes: 3})
	r.Begin(SourceCDP, "k", domain.NewRequest("GET", "https://a.test", nil, nil))
	if !r.Attach("k", domain.NewResponse(201, map[string]string{"X": "1"}, nil, "application/json")) {
		t.Fatalf("attach failed")
	}
	if !r.AttachBody("k", []byte("abcdef")) {
		t.Fatalf("attach body failed")
	}
	tx, _ := r.Finish("k", nil, nil)
	if tx.Response == nil || tx.Response.StatusCode != 201 {
		t.Fatalf("staged response lost: %+v", tx.Response)
	}
	if string(tx.Response.Body) != "abc" || !tx.Response.Truncated {
		t.Fatalf("body=%q truncated=%v", tx.Response.Body, tx.Response.Truncated)
	}
	if tx.Response.MimeType == nil || *tx.Response.MimeType != "application/json" {
		t.Fatalf("mime lost")
	}
}

func TestRecorderManualCapture(t *testing.T) {
	c := &collector{}
	clock := &fakeClock{now: time.Unix(50, 0).UTC()}
	r := newTestRecorder(t, c, Options{Now: clock.Now})
	r.Deactivate()

	failure := domain.Error{Code: -1009, Message: "offline", Domain: "NSURLErrorDomain"}
	tx := r.Capture(domain.NewRequest("GET", "https://a.test", nil, nil), nil, &failure, nil)
	if tx.Duration != nil {
		t.Fatalf("duration must be absent without a start time")
	}
	if tx.Response != nil || tx.Error == nil || tx.Error.Code != -1009 {
		t.Fatalf("unexpected: %+v", tx)
	}

	start := clock.Now().Add(-2 * time.Second)
	resp := domain.NewResponse(204, nil, nil, "")
	tx = r.Capture(domain.NewRequest("GET", "https://a.test", nil, nil), &resp, nil, &start)
	if tx.Duration == nil || *tx.Duration != 2 {
		t.Fatalf("duration=%v, want 2", tx.Duration)
	}
	if !tx.Timestamp.Equal(start) {
		t.Fatalf("timestamp should be the start time")
	}
	if len(c.all()) != 2 {
		t.Fatalf("manual capture must work while inactive")
	}
}

func TestRecorderSwallowsSinkPanic(t *testing.T) {
	r := NewRecorder(func(domain.Transaction) { panic("boom") }, Options{})
	r.Activate()
	resp := domain.NewResponse(200, nil, nil, "")
	r.Capture(domain.NewRequest("GET", "https://a.test", nil, nil), &resp, nil, nil)
}

func TestRecorderRedactsRequestHeaders(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{})
	req, _ := http.NewRequest(http.MethodGet, "https://a.test", nil)
	req.Header["authorization"] = []string{"Bearer secret"}
	req.Header.Set("COOKIE", "sid=1")
	req.Header.Set("Accept", "*/*")
	got := r.BuildRequest(req, nil, false)
	if got.Headers["authorization"] != redact.Mask || got.Headers["Cookie"] != redact.Mask {
		t.Fatalf("headers not redacted: %v", got.Headers)
	}
	if got.Headers["Accept"] != "*/*" {
		t.Fatalf("accept lost: %v", got.Headers)
	}
}

func TestRecorderDuplicateKeyKeepsLatest(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{})
	first := r.Begin(SourceEvents, "k", domain.NewRequest("GET", "https://a.test/1", nil, nil))
	second := r.Begin(SourceEvents, "k", domain.NewRequest("GET", "https://a.test/2", nil, nil))
	if r.Pending() != 1 {
		t.Fatalf("pending=%d, want 1", r.Pending())
	}
	term := c.terminal()
	if len(term) != 1 || term[0].ID != first || term[0].Error == nil || term[0].Error.Code != domain.CodeCancelled {
		t.Fatalf("superseded start not cancelled: %+v", term)
	}
	tx, _ := r.Finish("k", nil, &domain.Error{Code: -1, Message: "x", Domain: domain.DomainNetwork})
	if tx.ID != second {
		t.Fatalf("finished %s, want %s", tx.ID, second)
	}
}

func TestRecorderManualCaptureRedacts(t *testing.T) {
	c := &collector{}
	r := newTestRecorder(t, c, Options{})
	resp := domain.NewResponse(200, map[string]string{"set-cookie": "sid=2"}, nil, "")
	tx := r.Capture(domain.NewRequest("GET", "https://a.test", map[string]string{"AUTHORIZATION": "Basic x"}, nil), &resp, nil, nil)
	if tx.Request.Headers["AUTHORIZATION"] != redact.Mask || tx.Response.Headers["set-cookie"] != redact.Mask {
		t.Fatalf("manual capture leaked secrets: %v %v", tx.Request.Headers, tx.Response.Headers)
	}
	if resp.Headers["set-cookie"] != "sid=2" {
		t.Fatalf("caller's response was modified")
	}
}
