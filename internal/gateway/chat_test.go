package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/provider/providertest"
	"github.com/flemzord/chatrelay/internal/session"
)

func TestChat_EndToEnd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("hello!"), Config{})

	resp := env.do(t, http.MethodPost, "/chat", chatBody("hi", ""), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /chat status = %d", resp.StatusCode)
	}
	got := decode[chatResponse](t, resp)
	if got.Response != "hello!" {
		t.Errorf("response = %q, want %q", got.Response, "hello!")
	}
	if got.SessionID == "" {
		t.Fatal("session_id is empty")
	}

	resp = env.do(t, http.MethodGet, "/sessions/"+got.SessionID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /sessions status = %d", resp.StatusCode)
	}
	hist := decode[historyResponse](t, resp)
	want := []session.Turn{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello!"},
	}
	if hist.SessionID != got.SessionID || !slices.Equal(hist.History, want) {
		t.Errorf("history = %+v, want %+v", hist, want)
	}

	resp = env.do(t, http.MethodDelete, "/sessions/"+got.SessionID, nil, nil)
	msg := decode[messageResponse](t, resp)
	if wantMsg := fmt.Sprintf("Session %s history cleared.", got.SessionID); msg.Message != wantMsg {
		t.Errorf("message = %q, want %q", msg.Message, wantMsg)
	}

	resp = env.do(t, http.MethodGet, "/sessions/"+got.SessionID, nil, nil)
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `"history":[]`) {
		t.Errorf("cleared history body = %s, want an empty JSON array", raw)
	}
}

func TestChat_UnknownSessionHeals(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("hello!"), Config{})

	resp := env.do(t, http.MethodPost, "/chat", chatBody("hi", "gone-after-restart"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[chatResponse](t, resp)
	if got.SessionID == "gone-after-restart" || got.SessionID == "" {
		t.Fatalf("session_id = %q, want a fresh ID", got.SessionID)
	}

	sess, ok := env.store.Get(got.SessionID)
	if !ok || len(sess.History) != 2 {
		t.Errorf("healed session = %+v, %v", sess, ok)
	}
}

func TestChat_StreamFlagIsBuffered(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			return providertest.Chunks("Hel", "lo, ", "world"), nil
		},
	}
	env := newTestEnv(t, mock, Config{})

	body := chatBody("hi", "")
	body["stream"] = true
	resp := env.do(t, http.MethodPost, "/chat", body, nil)
	got := decode[chatResponse](t, resp)
	if got.Response != "Hello, world" {
		t.Errorf("response = %q, want %q", got.Response, "Hello, world")
	}
}

func TestChat_ClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"model": "llama3", "messages": [`},
		{"wrong type", `{"model": "llama3", "messages": "hi"}`},
		{"empty messages", `{"model": "llama3", "messages": []}`},
		{"missing messages", `{"model": "llama3"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, replyWith("unused"), Config{})

			resp := env.do(t, http.MethodPost, "/chat", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if e := decode[errorResponse](t, resp); e.Detail == "" {
				t.Error("detail is empty")
			}
			if env.store.Len() != 0 {
				t.Errorf("store holds %d sessions, want 0", env.store.Len())
			}
		})
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, fmt.Errorf("ollama: %w", provider.ErrModelNotFound)
		},
	}
	env := newTestEnv(t, mock, Config{})

	resp := env.do(t, http.MethodPost, "/chat", chatBody("hi", ""), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	e := decode[errorResponse](t, resp)
	if e.Detail != "Chat completion error: ollama: model not found" {
		t.Errorf("detail = %q", e.Detail)
	}

	// The user turn is kept.
	infos := env.store.List()
	if len(infos) != 1 || infos[0].Turns != 1 {
		t.Errorf("sessions = %+v, want one session holding the user turn", infos)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{})

	resp := env.do(t, http.MethodGet, "/sessions/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if e := decode[errorResponse](t, resp); e.Detail != "Session not found" {
		t.Errorf("detail = %q, want %q", e.Detail, "Session not found")
	}
}

func TestClearSession_UnknownIsOK(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{})

	resp := env.do(t, http.MethodDelete, "/sessions/missing", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if msg := decode[messageResponse](t, resp); msg.Message != "Session missing history cleared." {
		t.Errorf("message = %q", msg.Message)
	}
}

func TestModels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{})
	resp := env.do(t, http.MethodGet, "/models", nil, nil)
	got := decode[modelsResponse](t, resp)
	if len(got.Models) != 1 || got.Models[0].Name != "llama3:latest" {
		t.Errorf("models = %+v", got.Models)
	}
}

func TestModels_UpstreamDownDegradesToEmpty(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		ListModelsFunc: func(context.Context) ([]provider.Model, error) {
			return nil, provider.ErrProviderDown
		},
	}
	env := newTestEnv(t, mock, Config{})

	resp := env.do(t, http.MethodGet, "/models", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(raw)) != `{"models":[]}` {
		t.Errorf("body = %s, want {\"models\":[]}", raw)
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{})
	resp := env.do(t, http.MethodGet, "/", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if msg := decode[messageResponse](t, resp); msg.Message == "" {
		t.Error("banner is empty")
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{})

	header := http.Header{}
	header.Set("Origin", "http://localhost:8501")
	header.Set("Access-Control-Request-Method", "POST")
	header.Set("Access-Control-Request-Headers", "content-type")
	resp := env.do(t, http.MethodOptions, "/chat", nil, header)

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:8501" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, replyWith("unused"), Config{CORS: CORSConfig{AllowedOrigins: []string{"http://ok.example"}}})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	resp := env.do(t, http.MethodGet, "/", nil, header)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none for a foreign origin", got)
	}
}
