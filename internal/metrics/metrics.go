package metrics

import (
	"io"
	"net/http"

	vm "github.com/VictoriaMetrics/metrics"
)

// Metrics holds the counters for one connection manager.
type Metrics struct {
	set *vm.Set

	Connects          *vm.Counter
	ConnectFailures   *vm.Counter
	Reconnects        *vm.Counter
	MessagesReceived  *vm.Counter
	MessagesSent      *vm.Counter
	SendFailures      *vm.Counter
	DecodeFailures    *vm.Counter
	FramesDropped     *vm.Counter
	MaxRetriesReached *vm.Counter
}

// New creates an isolated set of counters.
func New() *Metrics {
	s := vm.NewSet()
	return &Metrics{
		set:               s,
		Connects:          s.NewCounter("relay_connects_total"),
		ConnectFailures:   s.NewCounter("relay_connect_failures_total"),
		Reconnects:        s.NewCounter("relay_reconnects_total"),
		MessagesReceived:  s.NewCounter("relay_messages_received_total"),
		MessagesSent:      s.NewCounter("relay_messages_sent_total"),
		SendFailures:      s.NewCounter("relay_send_failures_total"),
		DecodeFailures:    s.NewCounter("relay_decode_failures_total"),
		FramesDropped:     s.NewCounter("relay_frames_dropped_total"),
		MaxRetriesReached: s.NewCounter("relay_max_retries_reached_total"),
	}
}

// Gauge registers a gauge computed on every scrape. Registering the same
// name twice panics.
func (m *Metrics) Gauge(name string, f func() float64) {
	m.set.NewGauge(name, f)
}

// WritePrometheus writes all metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer, processMetrics bool) {
	m.set.WritePrometheus(w)
	if processMetrics {
		vm.WriteProcessMetrics(w)
	}
}

// Handler serves the metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.WritePrometheus(w, true)
	})
}
