package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/chatrelay/internal/metrics"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64            `json:"uptime_seconds"`
	StartedAt time.Time        `json:"started_at"`
	Metrics   metrics.Snapshot `json:"metrics"`
	Sessions  int              `json:"sessions"`
	Provider  string           `json:"provider"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    int64(time.Since(g.startedAt).Seconds()),
			StartedAt: g.startedAt,
			Metrics:   g.metrics.Snapshot(),
			Provider:  g.chat.ProviderName(),
		}
		if g.counter != nil {
			resp.Sessions = g.counter.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
