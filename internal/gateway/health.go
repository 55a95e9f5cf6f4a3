package gateway

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string         `json:"status"` // "ok" or "degraded"
	Sessions int            `json:"sessions"`
	Provider ProviderStatus `json:"provider"`
}

// ProviderStatus reports the completion backend's reachability.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 if the backend is reachable, 503 otherwise. Backends without
// a health probe are reported available.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Provider: ProviderStatus{Available: true},
		}

		if g.counter != nil {
			resp.Sessions = g.counter.Len()
		}
		if g.chat != nil {
			resp.Provider.Name = g.chat.ProviderName()
		}

		if g.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := g.health.HealthCheck(ctx); err != nil {
				resp.Status = "degraded"
				resp.Provider.Available = false
				resp.Provider.Error = err.Error()
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
