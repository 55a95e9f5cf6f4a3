package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/chatrelay/internal/provider"
)

// Ollama wire types for JSON serialization.

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []wireMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   *requestOption `json:"options,omitempty"`
}

type requestOption struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is both the non-streaming reply and one NDJSON stream line.
type chatResponse struct {
	Model           string      `json:"model"`
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

type errorBody struct {
	Error string `json:"error"`
}

// buildRequest converts a provider.CompletionRequest into an Ollama chat
// request. cfg.Model is used when the request names none.
func buildRequest(cfg Config, req provider.CompletionRequest, stream bool) chatRequest {
	messages := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}

	model := req.Model
	if model == "" {
		model = cfg.Model
	}

	out := chatRequest{
		Model:     model,
		Messages:  messages,
		Stream:    stream,
		KeepAlive: cfg.KeepAlive,
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		out.Options = &requestOption{NumPredict: req.MaxTokens, Temperature: req.Temperature}
	}
	return out
}

// parseResponse converts a final Ollama reply into a provider.CompletionResponse.
func parseResponse(resp chatResponse) provider.CompletionResponse {
	return provider.CompletionResponse{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		FinishReason: mapDoneReason(resp.DoneReason),
		Usage:        usage(resp),
	}
}

func usage(resp chatResponse) provider.TokenUsage {
	return provider.TokenUsage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
}

// mapDoneReason converts Ollama's done_reason to a provider.FinishReason.
func mapDoneReason(reason string) provider.FinishReason {
	switch reason {
	case "", "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	default:
		return provider.FinishReason(reason)
	}
}

// doRequest executes an HTTP request against the Ollama API.
func (p *Provider) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Caller cancellation is not a backend failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return resp, nil
}

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

// handleErrorResponse maps HTTP error status codes to sentinel errors.
func handleErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	msg := strings.TrimSpace(string(raw))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", provider.ErrModelNotFound, msg)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrAuthentication, resp.StatusCode, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, resp.StatusCode, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}
