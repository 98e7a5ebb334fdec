// Package provider defines the upstream client contracts and the error shape
// shared by all provider implementations.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmanole/chatgate/internal/classify"
	"github.com/tmanole/chatgate/internal/types"
)

// StreamHandler receives each incremental content fragment in arrival order.
// Returning an error aborts the stream.
type StreamHandler func(fragment string) error

// ChatStreamer is the streaming chat-completions API of an LLM aggregator.
type ChatStreamer interface {
	// Name returns the provider identifier for logging.
	Name() string

	// StreamChat sends the adapted message list upstream and relays
	// incremental output through onContent. On clean completion it returns
	// the usage block, which is nil when the upstream reported none.
	StreamChat(ctx context.Context, model string, messages []types.Message, onContent StreamHandler) (*types.Usage, error)
}

// ImageGenerator is the media generation API.
type ImageGenerator interface {
	Name() string
	Generate(ctx context.Context, req *types.ImageRequest) ([]types.ImageData, error)
}

// UpstreamError is a failure reported by (or while talking to) an upstream
// provider, carrying just enough structure for classification.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// AsRaw converts any provider failure into the classifier's structured view.
// Context cancellation and deadline expiry surface as canceled.
func AsRaw(err error) classify.RawError {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return classify.RawError{Status: ue.Status, Message: ue.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classify.RawError{Canceled: true, Message: err.Error()}
	}
	return classify.RawError{Message: err.Error()}
}
