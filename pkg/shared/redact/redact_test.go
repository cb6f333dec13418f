package redact

import (
	"net/http"
	"testing"
)

func TestHeadersMasksCaseInsensitively(t *testing.T) {
	s := NewSet("Authorization", "cookie")
	h := http.Header{}
	h["authorization"] = []string{"Bearer abc"}
	h.Set("Cookie", "sid=1")
	h.Set("Accept", "application/json")

	got := Headers(h, s)
	if got["authorization"] != Mask {
		t.Fatalf("authorization not masked: %q", got["authorization"])
	}
	if got["Cookie"] != Mask {
		t.Fatalf("cookie not masked: %q", got["Cookie"])
	}
	if got["Accept"] != "application/json" {
		t.Fatalf("accept changed: %q", got["Accept"])
	}
}

func TestHeadersJoinsValues(t *testing.T) {
	h := http.Header{}
	h.Add("Accept", "a")
	h.Add("Accept", "b")
	h.Add("Set-Cookie", "x=1")
	h.Add("Set-Cookie", "y=2")
	got := Headers(h, NewSet())
	if got["Accept"] != "a, b" {
		t.Fatalf("accept: %q", got["Accept"])
	}
	if got["Set-Cookie"] != "x=1\ny=2" {
		t.Fatalf("set-cookie: %q", got["Set-Cookie"])
	}
}

func TestMap(t *testing.T) {
	got := Map(map[string]string{"AUTHORIZATION": "k", "X-Trace": "1"}, NewSet(DefaultHeaders...))
	if got["AUTHORIZATION"] != Mask || got["X-Trace"] != "1" {
		t.Fatalf("unexpected: %v", got)
	}
}

func TestNewSetSkipsBlank(t *testing.T) {
	if s := NewSet(" ", ""); len(s) != 0 {
		t.Fatalf("blank names kept: %v", s)
	}
}
