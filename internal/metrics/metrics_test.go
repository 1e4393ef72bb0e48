package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_WritePrometheus(t *testing.T) {
	m := New()
	m.Connects.Inc()
	m.Connects.Inc()
	m.MessagesReceived.Add(5)
	m.Gauge("relay_retry_count", func() float64 { return 3 })

	var buf bytes.Buffer
	m.WritePrometheus(&buf, false)
	out := buf.String()

	for _, want := range []string{
		"relay_connects_total 2",
		"relay_messages_received_total 5",
		"relay_send_failures_total 0",
		"relay_retry_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMetrics_Isolated(t *testing.T) {
	a := New()
	b := New()
	a.Reconnects.Inc()

	if got := b.Reconnects.Get(); got != 0 {
		t.Errorf("b.Reconnects = %d, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.FramesDropped.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "relay_frames_dropped_total 1") {
		t.Errorf("body missing counter:\n%s", rec.Body.String())
	}
}
