package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/relay/internal/connection"
	"github.com/rickgao/relay/internal/metrics"
)

type statsSource interface {
	Stats() connection.ManagerStats
}

// newHTTPHandler serves /health and the Prometheus metrics.
func newHTTPHandler(src statsSource, mt *metrics.Metrics, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := src.Stats()

		health := struct {
			Status      string `json:"status"`
			State       string `json:"state"`
			RetryCount  uint   `json:"retry_count"`
			Session     string `json:"session,omitempty"`
			Subscribers int    `json:"subscribers"`
			Published   int64  `json:"published"`
			Backlog     int    `json:"backlog"`
		}{
			Status:      healthStatus(stats.State),
			State:       stats.State.String(),
			RetryCount:  stats.RetryCount,
			Session:     stats.Session,
			Subscribers: stats.Subscribers,
			Published:   stats.Published,
			Backlog:     stats.Backlog,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(metricsPath, mt.Handler())

	return mux
}

func healthStatus(s connection.State) string {
	switch s.Phase {
	case connection.PhaseOpen:
		return "healthy"
	case connection.PhaseConnecting, connection.PhaseReconnecting:
		return "degraded"
	default:
		return "unhealthy"
	}
}
