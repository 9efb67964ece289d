package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
)

const defaultOpenAIModel = "gpt-4"

// openAIProvider talks to any OpenAI-compatible chat completions
// endpoint. It backs both the "openai" and "gemini" provider kinds; the
// latter points the client at Google's compatibility base URL.
type openAIProvider struct {
	name    string
	client  *openai.Client
	modelID string
	logger  *zap.Logger
}

func newOpenAIProvider(model *config.ModelConfig, logger *zap.Logger) *openAIProvider {
	return newOpenAICompatProvider("openai", model, "", defaultOpenAIModel, logger)
}

func newOpenAICompatProvider(name string, model *config.ModelConfig, baseURL string, defaultModel string, logger *zap.Logger) *openAIProvider {
	cfg := openai.DefaultConfig(model.APIKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	modelID := model.Model
	if modelID == "" {
		modelID = defaultModel
	}

	return &openAIProvider{
		name:    name,
		client:  openai.NewClientWithConfig(cfg),
		modelID: modelID,
		logger:  logger,
	}
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	out := openai.ChatCompletionRequest{
		Model:       p.modelID,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	return out
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	return withRetry(ctx, p.logger, func() (*Response, error) {
		resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
		if err != nil {
			return nil, p.wrapErr(err)
		}
		if len(resp.Choices) == 0 {
			return nil, &TransportError{Provider: p.name, Message: "no choices in response"}
		}

		return &Response{
			Text: resp.Choices[0].Message.Content,
			Usage: &Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}, nil
	})
}

func (p *openAIProvider) Stream(ctx context.Context, req Request, callback StreamCallback) (*Response, error) {
	chatReq := p.buildRequest(req, true)
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	// Only stream setup is retried; once chunks have arrived a failure
	// finalizes the partial text instead.
	var stream *openai.ChatCompletionStream
	_, err := withRetry(ctx, p.logger, func() (*Response, error) {
		var err error
		stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return nil, p.wrapErr(err)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var text strings.Builder
	var usage *Usage
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			partial := &Response{Text: text.String(), Usage: usage}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return partial, err
			}
			return partial, p.wrapErr(err)
		}

		if chunk.Usage != nil {
			usage = &Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				text.WriteString(delta)
				if callback != nil {
					callback(delta)
				}
			}
		}
	}

	return &Response{Text: text.String(), Usage: usage}, nil
}

// wrapErr normalizes go-openai errors to the gateway taxonomy.
func (p *openAIProvider) wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			return &TransportError{Provider: p.name, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: ErrMissingCredential}
		}
		return &TransportError{Provider: p.name, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{Provider: p.name, Status: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransportError{Provider: p.name, Err: err}
}
