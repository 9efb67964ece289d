// Package provider implements the gateway to LLM backends. Each backend
// kind is one Provider variant behind a common interface; adding a
// backend means adding a variant, not changing the contract.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
)

// Request is a provider-agnostic completion request. Prompt carries the
// already-assembled context plus the user question.
type Request struct {
	SystemPrompt string
	Prompt       string
	Temperature  float64
	// MaxTokens caps generation length; nil uses the provider default.
	MaxTokens *int
}

// Usage reports token accounting as returned by the backend, when
// available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the normalized reply shape shared by all backends.
type Response struct {
	Text  string
	Usage *Usage
}

// StreamCallback receives each incremental text chunk as it arrives.
type StreamCallback func(chunk string)

// Provider is one LLM backend. Stream yields chunks through the callback
// and returns the final accumulated response; when the context is
// cancelled or the stream fails midway, it returns the partial response
// accumulated so far together with the error, so callers can persist
// partial output.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, callback StreamCallback) (*Response, error)
}

// New constructs the provider variant for the given model configuration.
// It fails with ErrMissingCredential when the resolved api-key is empty
// and with ErrUnsupportedProvider for unknown backend kinds, in both
// cases before any network call is attempted.
func New(model *config.ModelConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model.APIKey == "" {
		return nil, fmt.Errorf("model '%s' (%s): %w", model.Name, model.Provider, ErrMissingCredential)
	}

	switch model.Provider {
	case "openai":
		return newOpenAIProvider(model, logger), nil
	case "gemini":
		return newGeminiProvider(model, logger), nil
	case "anthropic":
		return newAnthropicProvider(model, logger), nil
	default:
		return nil, fmt.Errorf("model '%s': %w: %s", model.Name, ErrUnsupportedProvider, model.Provider)
	}
}
