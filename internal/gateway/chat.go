package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flemzord/chatrelay/internal/chat"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/session"
	"github.com/go-chi/chi/v5"
)

// Detail strings returned to clients.
const (
	detailSessionNotFound    = "Session not found"
	detailSessionUnavailable = "Failed to establish or retrieve session unexpectedly."
)

// chatRequest is the body of POST /chat and of each WebSocket message.
type chatRequest struct {
	Model     string             `json:"model"`
	Messages  []provider.Message `json:"messages"`
	Stream    bool               `json:"stream"`
	SessionID string             `json:"session_id"`
}

func (r chatRequest) toChat() chat.Request {
	return chat.Request{
		Model:     r.Model,
		Messages:  r.Messages,
		Stream:    r.Stream,
		SessionID: r.SessionID,
	}
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	History   []session.Turn `json:"history"`
}

type modelsResponse struct {
	Models []provider.Model `json:"models"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// handleRoot returns a liveness banner.
func (g *Gateway) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "chatrelay backend is running!"})
	}
}

// handleModels lists the backend's models. Upstream failure yields an
// empty list, never an error status.
func (g *Gateway) handleModels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, modelsResponse{Models: g.chat.ListModels(r.Context())})
	}
}

// handleChat runs one buffered turn.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		resp, err := g.chat.Turn(r.Context(), req.toChat())
		if err != nil {
			code, detail := chatErrorStatus(err)
			if code >= http.StatusInternalServerError {
				g.logger.Error("chat turn failed", "session_id", resp.SessionID, "error", err)
			}
			writeDetail(w, code, detail)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{Response: resp.Text, SessionID: resp.SessionID})
	}
}

// handleGetSession returns a session's transcript.
func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := g.chat.History(id)
		if !ok {
			writeDetail(w, http.StatusNotFound, detailSessionNotFound)
			return
		}
		history := sess.History
		if history == nil {
			history = []session.Turn{}
		}
		writeJSON(w, http.StatusOK, historyResponse{SessionID: id, History: history})
	}
}

// handleClearSession empties a session's history. Unknown IDs succeed too.
func (g *Gateway) handleClearSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		g.chat.ClearHistory(id)
		writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Session %s history cleared.", id)})
	}
}

// chatErrorStatus maps a turn error to an HTTP status and detail string.
func chatErrorStatus(err error) (int, string) {
	var cerr *chat.CompletionError
	switch {
	case errors.Is(err, chat.ErrNoMessages):
		return http.StatusBadRequest, "Invalid request body: " + err.Error()
	case errors.As(err, &cerr):
		return http.StatusInternalServerError, "Chat completion error: " + cerr.Err.Error()
	case errors.Is(err, chat.ErrSessionUnavailable):
		return http.StatusInternalServerError, detailSessionUnavailable
	default:
		return http.StatusInternalServerError, "Chat completion error: " + err.Error()
	}
}
