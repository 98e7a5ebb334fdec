// Package mediagen implements the image generation provider client.
package mediagen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/types"
)

// DefaultBaseURL is the production image generation endpoint.
const DefaultBaseURL = "https://api.together.xyz/v1/images/generations"

// requestTimeout bounds a single generation call.
const requestTimeout = 120 * time.Second

// Client talks to the media generation service.
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
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "media"
}

type generatePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

type generateResponse struct {
	Data []types.ImageData `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements provider.ImageGenerator.
func (c *Client) Generate(ctx context.Context, req *types.ImageRequest) ([]types.ImageData, error) {
	n := req.N
	if n <= 0 {
		n = 1
	}

	body, err := json.Marshal(generatePayload{
		Model:  req.Model,
		Prompt: req.Prompt,
		N:      n,
		Size:   req.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &provider.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &provider.UpstreamError{Status: resp.StatusCode, Message: err.Error()}
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &provider.UpstreamError{Status: resp.StatusCode, Message: string(raw)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(raw)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &provider.UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	return parsed.Data, nil
}
