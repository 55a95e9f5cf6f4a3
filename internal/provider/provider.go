package provider

import "context"

// ServiceName is the name the configured backend module publishes itself
// under. Exactly one backend is active per process.
const ServiceName = "provider"

// Provider is the interface for talking to a language-model backend.
// Concrete implementations live under modules/provider and also implement
// core.Module for lifecycle management.
type Provider interface {
	// ListModels returns the models the backend can serve.
	ListModels(ctx context.Context) ([]Model, error)

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a completion request and returns a channel of chunks in
	// arrival order. Initial connection errors are returned directly.
	// Mid-stream errors are delivered via StreamChunk.Err. The channel is
	// closed when the backend reports completion or the context ends.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Name identifies the backend in logs, health output and metrics.
	Name() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing from the gateway's /health route.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
