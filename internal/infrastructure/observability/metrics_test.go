package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestNilMetricsHelpersAreNoops(t *testing.T) {
	var m *Metrics
	m.Captured("transport", "ok")
	m.CaptureError("emit")
	m.Pending(1)
	m.Stored(3)
	m.Evicted(2)
	m.NotificationFailed()
}

func TestMetricsRegistered(t *testing.T) {
	m := NewMetrics()
	m.Captured("manual", "error")
	m.Evicted(2)
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"inspector_transactions_captured_total", "inspector_evictions_total"} {
		if !names[want] {
			t.Fatalf("missing metric %s in %v", want, names)
		}
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "warn")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected log output: %s", out)
	}
}
