package gateway

import (
	"net/http"

	"github.com/flemzord/chatrelay/internal/session"
	"github.com/go-chi/chi/v5"
)

type sweepResponse struct {
	Swept int `json:"swept"`
}

// handleListSessions returns all live sessions as JSON, most recently
// active first.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := g.chat.Sessions()
		if sessions == nil {
			sessions = []session.Info{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleDeleteSession deletes a session by its ID.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.chat.DeleteSession(id) {
			writeDetail(w, http.StatusNotFound, detailSessionNotFound)
			return
		}
		g.logger.Info("session deleted via admin API", "session_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSweep runs an idle sweep immediately.
func (g *Gateway) handleSweep() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.sweeper == nil {
			writeDetail(w, http.StatusServiceUnavailable, "session sweeper not available")
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Swept: g.sweeper.Sweep()})
	}
}
