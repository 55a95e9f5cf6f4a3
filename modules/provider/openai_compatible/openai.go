// Package openaicompat provides a completion backend for any server that
// speaks the OpenAI chat completions API, including Ollama's /v1 routes,
// vLLM and LiteLLM.
package openaicompat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is an OpenAI-compatible completion backend.
type Provider struct {
	config Config
	client openai.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.client = newClient(p.config)
	ctx.RegisterService(provider.ServiceName, p)
	p.logger.Info("openai-compatible backend configured", "base_url", p.config.BaseURL, "model", p.config.Model)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

func newClient(cfg Config) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithAPIKey(cfg.apiKey()),
		option.WithMaxRetries(0),
		// Bound the wait for headers only; a client timeout would cut streams.
		option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
		}),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return openai.NewClient(opts...)
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return "openai_compatible"
}

// ListModels implements provider.Provider.
func (p *Provider) ListModels(ctx context.Context) ([]provider.Model, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	models := make([]provider.Model, len(page.Data))
	for i, m := range page.Data {
		models[i] = provider.Model{Name: m.ID}
	}
	return models, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.client.Chat.Completions.New(ctx, buildParams(p.config, req))
	if err != nil {
		return provider.CompletionResponse{}, mapError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("%w: no choices in response", provider.ErrBadResponse)
	}

	choice := resp.Choices[0]
	return provider.CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage:        toUsage(resp.Usage),
	}, nil
}

// Stream implements provider.Provider. A request the server rejects
// outright is reported here rather than on the channel.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, buildParams(p.config, req))

	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err == nil {
			return nil, fmt.Errorf("%w: empty stream", provider.ErrBadResponse)
		}
		return nil, mapError(ctx, err)
	}

	ch := make(chan provider.StreamChunk, 16)
	go func() {
		defer close(ch)
		defer stream.Close() //nolint:errcheck // best-effort close

		send := func(sc provider.StreamChunk) bool {
			select {
			case ch <- sc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finished := false
		for {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				sc := provider.StreamChunk{Content: choice.Delta.Content}
				if choice.FinishReason != "" {
					sc.FinishReason = mapFinishReason(choice.FinishReason)
					finished = true
				}
				if chunk.Usage.TotalTokens > 0 {
					u := toUsage(chunk.Usage)
					sc.Usage = &u
				}
				if sc.Content != "" || sc.FinishReason != "" {
					if !send(sc) {
						return
					}
				}
			}
			if !stream.Next() {
				break
			}
		}

		switch err := stream.Err(); {
		case ctx.Err() != nil:
		case err != nil:
			send(provider.StreamChunk{Err: mapError(ctx, err)})
		case !finished:
			// [DONE] without a finish_reason still ends the reply normally.
			send(provider.StreamChunk{FinishReason: provider.FinishReasonStop})
		}
	}()

	return ch, nil
}

// HealthCheck implements provider.HealthChecker by listing models.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
