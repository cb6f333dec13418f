package integration

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"
)

const defaultStackTimeout = 2 * time.Minute

// TestMain bounds the whole package. The stack tests hold real sockets (tap
// upstreams, the inspection API, monitor websockets) and a capture that never
// completes would otherwise leave them waiting on reads until go test's own
// ten minute limit. INSPECTOR_STACK_TIMEOUT_SECONDS overrides the bound.
func TestMain(m *testing.M) {
	limit := stackTimeout(os.Getenv("INSPECTOR_STACK_TIMEOUT_SECONDS"))
	watchdog := time.AfterFunc(limit, func() {
		fmt.Fprintf(os.Stderr, "integration: inspector stack still running after %s; a capture or monitor read is stuck\n", limit)
		os.Exit(3)
	})
	code := m.Run()
	watchdog.Stop()
	os.Exit(code)
}

func stackTimeout(v string) time.Duration {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultStackTimeout
}

func TestStackTimeout(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"":    defaultStackTimeout,
		"abc": defaultStackTimeout,
		"-5":  defaultStackTimeout,
		"30":  30 * time.Second,
	} {
		if got := stackTimeout(in); got != want {
			t.Errorf("stackTimeout(%q) = %s, want %s", in, got, want)
		}
	}
}
