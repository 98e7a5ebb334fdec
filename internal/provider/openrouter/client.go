// Package openrouter implements the streaming chat client for the OpenRouter
// LLM aggregator.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/types"
)

// DefaultBaseURL is the production chat-completions endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Client is a streaming chat client. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a client. baseURL may be empty to use the default endpoint.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		// DisableCompression is required for unbuffered streaming.
		http: &http.Client{
			Transport: &http.Transport{DisableCompression: true},
		},
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openrouter"
}

// chatPayload is the upstream request body.
type chatPayload struct {
	Model         string          `json:"model"`
	Messages      []types.Message `json:"messages"`
	Stream        bool            `json:"stream"`
	StreamOptions streamOptions   `json:"stream_options"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// StreamChat implements provider.ChatStreamer.
func (c *Client) StreamChat(ctx context.Context, model string, messages []types.Message, onContent provider.StreamHandler) (*types.Usage, error) {
	payload := chatPayload{
		Model:         model,
		Messages:      messages,
		Stream:        true,
		StreamOptions: streamOptions{IncludeUsage: true},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/tmanole/chatgate")
	req.Header.Set("X-Title", "chatgate")

	resp, err := c.http.Do(req)
	if err != nil {
		// Distinguish caller cancellation from transport failures.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &provider.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, readErrorResponse(resp)
	}

	proc := NewStreamProcessor()
	if err := proc.ProcessReader(resp.Body, onContent); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return proc.Usage(), nil
}

// upstreamErrorBody is the error envelope aggregators return.
type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// readErrorResponse extracts a structured error from a non-2xx response.
func readErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))

	var parsed upstreamErrorBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return &provider.UpstreamError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	return &provider.UpstreamError{Status: resp.StatusCode, Message: string(raw)}
}
