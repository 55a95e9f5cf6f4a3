package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/provider/providertest"
)

func dialWS(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readUntilFinal(t *testing.T, ctx context.Context, conn *websocket.Conn) ([]wsFrame, wsFrame) {
	t.Helper()
	var fragments []wsFrame
	for {
		var f wsFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Type == frameFragment {
			fragments = append(fragments, f)
			continue
		}
		return fragments, f
	}
}

func TestWebSocket_IncrementalTurns(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			return providertest.Chunks("Hel", "lo, ", "world"), nil
		},
	}
	env := newTestEnv(t, mock, Config{})
	conn, ctx := dialWS(t, env)

	if err := wsjson.Write(ctx, conn, chatBody("hi", "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	fragments, final := readUntilFinal(t, ctx, conn)
	if len(fragments) != 3 || fragments[0].Content != "Hel" {
		t.Errorf("fragments = %+v", fragments)
	}
	if final.Type != frameDone || final.Response != "Hello, world" || final.SessionID == "" {
		t.Fatalf("final frame = %+v", final)
	}

	// Same connection, same session.
	if err := wsjson.Write(ctx, conn, chatBody("again", final.SessionID)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, second := readUntilFinal(t, ctx, conn)
	if second.SessionID != final.SessionID {
		t.Errorf("session changed from %q to %q", final.SessionID, second.SessionID)
	}

	sess, ok := env.store.Get(final.SessionID)
	if !ok || len(sess.History) != 4 {
		t.Errorf("history = %+v", sess.History)
	}
}

func TestWebSocket_ErrorFrames(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			return nil, provider.ErrProviderDown
		},
	}
	env := newTestEnv(t, mock, Config{})
	conn, ctx := dialWS(t, env)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, final := readUntilFinal(t, ctx, conn)
	if final.Type != frameError || !strings.HasPrefix(final.Detail, "Invalid request body") {
		t.Errorf("frame = %+v, want invalid body error", final)
	}

	if err := wsjson.Write(ctx, conn, chatBody("hi", "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, final = readUntilFinal(t, ctx, conn)
	if final.Type != frameError || final.Detail != "Chat completion error: provider unavailable" {
		t.Errorf("frame = %+v, want completion error", final)
	}
	if final.SessionID == "" {
		t.Error("error frame should carry the session ID")
	}
}
