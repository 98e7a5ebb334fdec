package openrouter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/tmanole/chatgate/internal/provider"
	"github.com/tmanole/chatgate/internal/types"
)

// StreamProcessor parses an SSE chat-completions stream, forwarding content
// deltas and capturing the usage block from the final chunk.
type StreamProcessor struct {
	usage        *types.Usage
	finishReason string
}

// NewStreamProcessor creates an SSE stream processor.
func NewStreamProcessor() *StreamProcessor {
	return &StreamProcessor{}
}

// chatChunk is one parsed stream chunk.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *types.Usage `json:"usage"`
}

// ProcessReader consumes the SSE stream, invoking onContent for every
// non-empty content delta. Returns after the stream ends or on error.
func (p *StreamProcessor) ProcessReader(r io.Reader, onContent provider.StreamHandler) error {
	scanner := bufio.NewScanner(r)
	// Allow for large chunks.
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 256*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte(types.SSEPrefix)) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte(types.SSEPrefix))
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue // skip malformed chunks
		}

		// Usage arrives on the final chunk when include_usage is set.
		if chunk.Usage != nil {
			p.usage = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if err := onContent(choice.Delta.Content); err != nil {
					return err
				}
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				p.finishReason = *choice.FinishReason
			}
		}
	}

	return scanner.Err()
}

// Usage returns the usage block, or nil if the upstream reported none.
func (p *StreamProcessor) Usage() *types.Usage {
	return p.usage
}

// FinishReason returns the finish reason from the stream.
func (p *StreamProcessor) FinishReason() string {
	return p.finishReason
}
