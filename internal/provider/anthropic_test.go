package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcontext/dcx/internal/config"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *anthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := newAnthropicProvider(&config.ModelConfig{
		Name:     "claude",
		Provider: "anthropic",
		APIKey:   "sk-ant-test",
		Model:    "claude-3-opus-20240229",
	}, testLogger())
	p.baseURL = server.URL
	return p
}

func TestAnthropicComplete(t *testing.T) {
	var gotReq anthropicRequest
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContentBlock{{Type: "text", Text: "hello from claude"}},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 5},
		})
	})

	maxTokens := 512
	resp, err := p.Complete(context.Background(), Request{
		SystemPrompt: "be terse",
		Prompt:       "hi",
		Temperature:  0.3,
		MaxTokens:    &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello from claude", resp.Text)
	assert.Equal(t, &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "claude-3-opus-20240229", gotReq.Model)
	assert.Equal(t, 512, gotReq.MaxTokens)
	assert.Equal(t, "be terse", gotReq.System)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "hi", gotReq.Messages[0].Content)
}

func TestAnthropicCompleteDefaultMaxTokens(t *testing.T) {
	var gotReq anthropicRequest
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(anthropicResponse{})
	})

	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicMaxTokens, gotReq.MaxTokens)
}

func TestAnthropicAuthFailure(t *testing.T) {
	attempts := 0
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "invalid x-api-key")
	// 4xx client errors are not retried.
	assert.Equal(t, 1, attempts)
}

func TestAnthropicRetriesServerError(t *testing.T) {
	origBackoff := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = origBackoff }()

	attempts := 0
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{{Type: "text", Text: "second try"}},
		})
	})

	resp, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second try", resp.Text)
	assert.Equal(t, 2, attempts)
}

func TestAnthropicStream(t *testing.T) {
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []string{
			`event: message_start`,
			`data: {"type":"message_start","message":{"usage":{"input_tokens":7}}}`,
			``,
			`event: content_block_delta`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
			``,
			`event: content_block_delta`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":", world"}}`,
			``,
			`event: message_delta`,
			`data: {"type":"message_delta","usage":{"output_tokens":3}}`,
			``,
			`event: message_stop`,
			`data: {"type":"message_stop"}`,
			``,
		}
		for _, line := range events {
			fmt.Fprintln(w, line)
		}
		flusher.Flush()
	})

	var chunks []string
	resp, err := p.Stream(context.Background(), Request{Prompt: "hi"}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", ", world"}, chunks)
	assert.Equal(t, "Hello, world", resp.Text)
	assert.Equal(t, &Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, resp.Usage)
}

func TestAnthropicStreamCancellationKeepsPartialText(t *testing.T) {
	release := make(chan struct{})
	p := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"partial answer"}}`)
		fmt.Fprintln(w)
		flusher.Flush()

		// Hold the stream open until the client gives up.
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := p.Stream(ctx, Request{Prompt: "hi"}, func(chunk string) {
		cancel()
	})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "partial answer", resp.Text)
}
