// Package anthropic implements the provider.anthropic module, relaying chat
// turns to the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/provider"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger
	a.client = newClient(a.config)
	ctx.RegisterService(provider.ServiceName, a)
	a.logger.Info("anthropic backend configured", "model", a.config.Model)
	return nil
}

func newClient(cfg Config) *sdkanthropic.Client {
	// Config takes precedence over the environment variable.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
		}),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	return &client
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return a.config.validate()
}

// Name implements provider.Provider.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// ListModels implements provider.Provider.
func (a *Anthropic) ListModels(ctx context.Context) ([]provider.Model, error) {
	page, err := a.client.Models.List(ctx, sdkanthropic.ModelListParams{})
	if err != nil {
		return nil, mapError(err)
	}
	models := make([]provider.Model, len(page.Data))
	for i, m := range page.Data {
		models[i] = provider.Model{Name: m.ID, ModifiedAt: m.CreatedAt}
	}
	return models, nil
}

// Complete sends a synchronous request to the Messages API.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	msg, err := a.client.Messages.New(ctx, convertRequest(req, &a.config, a.logger))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return convertResponse(msg), nil
}

// HealthCheck validates connectivity and credentials by listing a single
// model, which costs no tokens.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	_, err := a.client.Models.List(ctx, sdkanthropic.ModelListParams{
		Limit: sdkanthropic.Int(1),
	})
	return mapError(err)
}
