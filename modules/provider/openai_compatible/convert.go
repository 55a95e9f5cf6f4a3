package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/openai/openai-go"
)

// buildParams converts a CompletionRequest to SDK parameters. An empty
// request model falls back to the configured one.
func buildParams(cfg Config, req provider.CompletionRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = cfg.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertMessages(req.Messages),
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

func convertMessages(msgs []provider.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case provider.MessageRoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "", "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	default:
		return provider.FinishReason(reason)
	}
}

func toUsage(u openai.CompletionUsage) provider.TokenUsage {
	return provider.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// mapError translates SDK errors to provider sentinels. Cancellation is
// returned unchanged so callers can tell it apart from a backend fault.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", provider.ErrModelNotFound, err)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", provider.ErrAuthentication, err)
	case apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	default:
		return fmt.Errorf("unexpected status %d: %w", apiErr.StatusCode, err)
	}
}
