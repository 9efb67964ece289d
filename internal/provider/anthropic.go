package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-opus-20240229"
	anthropicVersion        = "2023-06-01"

	// The Messages API requires max_tokens on every request.
	defaultAnthropicMaxTokens = 4096
)

// anthropicProvider talks to the Anthropic Messages API directly. The
// API is not OpenAI-compatible, so the variant owns its own request and
// SSE response translation.
type anthropicProvider struct {
	apiKey     string
	baseURL    string
	modelID    string
	httpClient *http.Client
	logger     *zap.Logger
}

func newAnthropicProvider(model *config.ModelConfig, logger *zap.Logger) *anthropicProvider {
	modelID := model.Model
	if modelID == "" {
		modelID = defaultAnthropicModel
	}
	return &anthropicProvider{
		apiKey:     model.APIKey,
		baseURL:    defaultAnthropicBaseURL,
		modelID:    modelID,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

// Anthropic-specific wire types.

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicStreamEvent covers the union of streaming event payloads dcx
// cares about: message_start (input usage), content_block_delta (text),
// and message_delta (output usage).
type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
}

func (p *anthropicProvider) buildRequest(req Request, stream bool) anthropicRequest {
	maxTokens := defaultAnthropicMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	temperature := req.Temperature

	return anthropicRequest{
		Model:     p.modelID,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		System:      req.SystemPrompt,
		Temperature: &temperature,
		Stream:      stream,
	}
}

func (p *anthropicProvider) newHTTPRequest(ctx context.Context, body anthropicRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

// errorFromResponse converts a non-200 reply to the gateway taxonomy.
func (p *anthropicProvider) errorFromResponse(status int, body []byte) error {
	message := string(body)
	var apiErr anthropicErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &TransportError{Provider: "anthropic", Status: status, Message: message, Err: ErrMissingCredential}
	}
	return &TransportError{Provider: "anthropic", Status: status, Message: message}
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	return withRetry(ctx, p.logger, func() (*Response, error) {
		httpReq, err := p.newHTTPRequest(ctx, p.buildRequest(req, false))
		if err != nil {
			return nil, err
		}

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &TransportError{Provider: "anthropic", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Provider: "anthropic", Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, p.errorFromResponse(resp.StatusCode, body)
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, &TransportError{Provider: "anthropic", Message: "failed to parse response", Err: err}
		}

		var text strings.Builder
		for _, block := range apiResp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}

		return &Response{
			Text: text.String(),
			Usage: &Usage{
				PromptTokens:     apiResp.Usage.InputTokens,
				CompletionTokens: apiResp.Usage.OutputTokens,
				TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
			},
		}, nil
	})
}

func (p *anthropicProvider) Stream(ctx context.Context, req Request, callback StreamCallback) (*Response, error) {
	// Only stream setup is retried; once chunks have arrived a failure
	// finalizes the partial text instead.
	var resp *http.Response
	_, err := withRetry(ctx, p.logger, func() (*Response, error) {
		httpReq, err := p.newHTTPRequest(ctx, p.buildRequest(req, true))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err = p.httpClient.Do(httpReq)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, &TransportError{Provider: "anthropic", Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, p.errorFromResponse(resp.StatusCode, body)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var text strings.Builder
	usage := &Usage{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed chunks
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.PromptTokens = event.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Text != "" {
				text.WriteString(event.Delta.Text)
				if callback != nil {
					callback(event.Delta.Text)
				}
			}
		case "message_delta":
			if event.Usage != nil {
				usage.CompletionTokens = event.Usage.OutputTokens
			}
		}
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	result := &Response{Text: text.String(), Usage: usage}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return result, &TransportError{Provider: "anthropic", Message: "error reading stream", Err: err}
	}

	return result, nil
}
