package provider

import "context"

// NoneProvider is the listen-only backend: it always returns an empty
// response, so the bridge keeps ingesting and persisting without ever
// replying.
type NoneProvider struct{}

// NewNoneProvider creates the listen-only provider.
func NewNoneProvider() *NoneProvider { return &NoneProvider{} }

// DefaultModel returns "none".
func (p *NoneProvider) DefaultModel() string { return "none" }

// Chat returns an empty response without contacting anything.
func (p *NoneProvider) Chat(_ context.Context, _ *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{FinishReason: "listen_only"}, nil
}
