package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 10 * time.Second

// Frame types sent on /ws/chat.
const (
	frameFragment = "fragment"
	frameDone     = "done"
	frameError    = "error"
)

// wsFrame is one server-to-client message on /ws/chat.
type wsFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Response  string `json:"response,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// handleWebSocket serves incremental delivery. Each text message from the
// client is a chat request; fragments are forwarded as they arrive,
// followed by a done frame carrying the full reply and session ID. The
// connection stays open for further turns.
func (g *Gateway) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: g.config.CORS.AllowedOrigins,
		})
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow() //nolint:errcheck // best-effort close
		conn.SetReadLimit(g.config.MaxBodyBytes)

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
					g.logger.Debug("websocket read ended", "error", err)
				}
				return
			}
			if typ != websocket.MessageText {
				if err := writeFrame(ctx, conn, wsFrame{Type: frameError, Detail: "expected a text message"}); err != nil {
					return
				}
				continue
			}
			if err := g.serveTurn(ctx, conn, data); err != nil {
				g.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// serveTurn runs one turn on conn. The returned error is a write failure;
// turn failures are reported to the client as error frames.
func (g *Gateway) serveTurn(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return writeFrame(ctx, conn, wsFrame{Type: frameError, Detail: "Invalid request body: " + err.Error()})
	}

	var writeErr error
	resp, err := g.chat.TurnStream(ctx, req.toChat(), func(fragment string) error {
		writeErr = writeFrame(ctx, conn, wsFrame{Type: frameFragment, Content: fragment})
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		code, detail := chatErrorStatus(err)
		if code >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
			g.logger.Error("websocket chat turn failed", "session_id", resp.SessionID, "error", err)
		}
		return writeFrame(ctx, conn, wsFrame{Type: frameError, Detail: detail, SessionID: resp.SessionID})
	}

	return writeFrame(ctx, conn, wsFrame{Type: frameDone, Response: resp.Text, SessionID: resp.SessionID})
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f wsFrame) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}
