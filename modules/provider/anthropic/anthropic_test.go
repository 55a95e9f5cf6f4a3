package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/provider"
	"gopkg.in/yaml.v3"
)

func newTestProvider(baseURL string) *Anthropic {
	cfg := Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "claude-test",
		MaxTokens: 256,
		Timeout:   5 * time.Second,
	}
	return &Anthropic{
		config: cfg,
		client: newClient(cfg),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func userTurn(text string) []provider.Message {
	return []provider.Message{{Role: provider.MessageRoleUser, Content: text}}
}

func TestConfigure_Defaults(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("max_tokens: 1024\n"), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	a := &Anthropic{}
	if err := a.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if a.config.Model != defaultModel {
		t.Errorf("Model = %q, want %q", a.config.Model, defaultModel)
	}
	if a.config.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", a.config.MaxTokens)
	}
	if a.config.APIKeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("APIKeyEnv = %q", a.config.APIKeyEnv)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "test-key" {
			t.Errorf("X-Api-Key = %q", key)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "hello!"}],
			"model": "claude-test",
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 4, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)
	resp, err := a.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: provider.MessageRoleSystem, Content: "be brief"},
			{Role: provider.MessageRoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello!" {
		t.Errorf("Content = %q, want hello!", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", resp.Usage.TotalTokens)
	}

	if body["model"] != "claude-test" {
		t.Errorf("model = %v, want configured fallback", body["model"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("messages = %d, want 1 (system moved out)", len(msgs))
	}
	if system, _ := body["system"].([]any); len(system) != 1 {
		t.Errorf("system = %v, want one block", body["system"])
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, provider.ErrModelNotFound},
		{http.StatusUnauthorized, provider.ErrAuthentication},
		{529, provider.ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
			}))
			defer srv.Close()

			a := newTestProvider(srv.URL)
			_, err := a.Complete(context.Background(), provider.CompletionRequest{Messages: userTurn("hi")})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStream_TextOnly(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("expected http.Flusher")
		}

		events := []string{
			"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-test\",\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":10,\"output_tokens\":0}}}",
			"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hel\"}}",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"lo!\"}}",
			"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}",
			"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"max_tokens\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":5}}",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}",
		}
		for _, ev := range events {
			_, _ = w.Write([]byte(ev + "\n\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)
	ch, err := a.Stream(context.Background(), provider.CompletionRequest{Messages: userTurn("hi")})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var content strings.Builder
	var usage *provider.TokenUsage
	var finish provider.FinishReason
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		content.WriteString(chunk.Content)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}

	if content.String() != "hello!" {
		t.Errorf("content = %q, want hello!", content.String())
	}
	if finish != provider.FinishReasonLength {
		t.Errorf("finish = %q, want length", finish)
	}
	if usage == nil || usage.TotalTokens != 15 {
		t.Errorf("usage = %+v, want 15 total tokens", usage)
	}
}

func TestStream_AuthErrorReturnedDirectly(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid api key"}}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)
	ch, err := a.Stream(context.Background(), provider.CompletionRequest{Messages: userTurn("hi")})
	if ch != nil {
		t.Error("expected nil channel on connect failure")
	}
	if !errors.Is(err, provider.ErrAuthentication) {
		t.Errorf("err = %v, want ErrAuthentication", err)
	}
}

func TestListModelsAndHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "claude-a", "type": "model", "display_name": "A", "created_at": "2025-01-01T00:00:00Z"},
				{"id": "claude-b", "type": "model", "display_name": "B", "created_at": "2025-02-01T00:00:00Z"}
			],
			"has_more": false,
			"first_id": "claude-a",
			"last_id": "claude-b"
		}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)
	models, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "claude-a" {
		t.Fatalf("models = %+v", models)
	}
	if models[1].ModifiedAt.IsZero() {
		t.Error("ModifiedAt not carried from created_at")
	}

	if err := a.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestConvertMessages_DropsLateSystem(t *testing.T) {
	t.Parallel()

	system, rest := splitSystemMessages([]provider.Message{
		{Role: provider.MessageRoleSystem, Content: "a"},
		{Role: provider.MessageRoleUser, Content: "hi"},
		{Role: provider.MessageRoleSystem, Content: "late"},
		{Role: provider.MessageRoleAssistant, Content: "hey"},
	})
	if len(system) != 1 {
		t.Fatalf("system = %d, want 1", len(system))
	}
	if got := convertMessages(rest, nil); len(got) != 2 {
		t.Errorf("messages = %d, want 2", len(got))
	}
}
