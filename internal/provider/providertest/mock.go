// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/chatrelay/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call,
// except NameFunc which defaults to "mock".
// All methods are safe for concurrent use.
type MockProvider struct {
	ListModelsFunc  func(ctx context.Context) ([]provider.Model, error)
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	StreamFunc      func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	NameFunc        func() string
	HealthCheckFunc func(ctx context.Context) error

	mu             sync.Mutex
	ListCalls      int
	CompleteCalls  int
	StreamCalls    int
	HealthCalls    int
	LastRequest    provider.CompletionRequest
	requestHistory []provider.CompletionRequest
}

// ListModels delegates to ListModelsFunc and tracks call count.
func (m *MockProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	return m.ListModelsFunc(ctx)
}

// Complete delegates to CompleteFunc and records the request.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.record(req, &m.CompleteCalls)
	return m.CompleteFunc(ctx, req)
}

// Stream delegates to StreamFunc and records the request.
func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	m.record(req, &m.StreamCalls)
	return m.StreamFunc(ctx, req)
}

// Name delegates to NameFunc.
func (m *MockProvider) Name() string {
	if m.NameFunc == nil {
		return "mock"
	}
	return m.NameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// Requests returns a copy of every completion request received so far.
func (m *MockProvider) Requests() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.requestHistory))
	copy(out, m.requestHistory)
	return out
}

func (m *MockProvider) record(req provider.CompletionRequest, counter *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.LastRequest = req
	m.requestHistory = append(m.requestHistory, req)
}

// Chunks returns a closed channel pre-filled with one chunk per fragment,
// for use as a StreamFunc result.
func Chunks(fragments ...string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, len(fragments))
	for _, f := range fragments {
		ch <- provider.StreamChunk{Content: f}
	}
	close(ch)
	return ch
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)
