package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/chat"
	"github.com/flemzord/chatrelay/internal/metrics"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/provider/providertest"
	"github.com/flemzord/chatrelay/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a gateway wired to a real store and orchestrator over a mock
// backend, served by an httptest server.
type testEnv struct {
	gateway *Gateway
	store   *session.Store
	metrics *metrics.Metrics
	server  *httptest.Server
}

func newTestEnv(t *testing.T, p provider.Provider, cfg Config) *testEnv {
	t.Helper()
	cfg.defaults()

	store := session.NewStore()
	rec := metrics.New()
	rec.TrackSessions(store.Len)
	logger := discardLogger()

	g := &Gateway{
		config:    cfg,
		logger:    logger,
		chat:      chat.New(store, p, chat.WithLogger(logger), chat.WithMetrics(rec)),
		counter:   store,
		metrics:   rec,
		startedAt: time.Now(),
	}
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)

	return &testEnv{gateway: g, store: store, metrics: rec, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *http.Response {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func replyWith(text string) *providertest.MockProvider {
	return &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: text}, nil
		},
		ListModelsFunc: func(context.Context) ([]provider.Model, error) {
			return []provider.Model{{Name: "llama3:latest", Size: 4661224676}}, nil
		},
	}
}

func chatBody(content, sessionID string) map[string]any {
	body := map[string]any{
		"model":    "llama3",
		"messages": []map[string]string{{"role": "user", "content": content}},
	}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	return body
}
