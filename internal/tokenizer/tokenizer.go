// Package tokenizer provides prompt token estimation. Estimates back the
// request logs and the billing fallback when an upstream omits its usage
// block; they are never preferred over upstream-reported counts.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tmanole/chatgate/internal/types"
)

// Tokenizer estimates token counts for chat requests.
type Tokenizer interface {
	// CountText counts tokens in a text string for a given model.
	CountText(text, model string) (int, error)

	// CountMessages estimates prompt tokens for a message list.
	CountMessages(messages []types.Message, model string) (int, error)
}

// Encoding names used by tiktoken.
const (
	encodingCL100kBase = "cl100k_base" // GPT-4, GPT-3.5 era
	encodingO200kBase  = "o200k_base"  // GPT-4o, o1 era
)

// Message overhead constants, per OpenAI's published counting rules. Close
// enough for non-OpenAI models reached through the aggregator.
const (
	messageOverhead    = 3
	replyPrimingTokens = 3
	imageBaseTokens    = 85
)

// modelEncodings lists model id substrings and their encodings, longest
// match first. Aggregator ids carry a vendor prefix ("openai/gpt-4o").
var modelEncodings = []struct {
	fragment string
	encoding string
}{
	{"gpt-4o", encodingO200kBase},
	{"gpt-3.5", encodingCL100kBase},
	{"gpt-4", encodingCL100kBase},
	{"o1", encodingO200kBase},
}

// Tiktoken implements Tokenizer using tiktoken-go with cached encodings.
type Tiktoken struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

// New creates a Tiktoken tokenizer.
func New() *Tiktoken {
	return &Tiktoken{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (t *Tiktoken) getEncoding(model string) (*tiktoken.Tiktoken, error) {
	name := resolveEncoding(model)

	t.mu.RLock()
	enc, ok := t.encodings[name]
	t.mu.RUnlock()
	if ok {
		return enc, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if enc, ok = t.encodings[name]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	t.encodings[name] = enc
	return enc, nil
}

func resolveEncoding(model string) string {
	lower := strings.ToLower(model)
	for _, me := range modelEncodings {
		if strings.Contains(lower, me.fragment) {
			return me.encoding
		}
	}
	return encodingCL100kBase
}

// CountText counts tokens in a text string for a given model.
func (t *Tiktoken) CountText(text, model string) (int, error) {
	enc, err := t.getEncoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages estimates prompt tokens for a message list, including the
// per-message framing overhead and reply priming.
func (t *Tiktoken) CountMessages(messages []types.Message, model string) (int, error) {
	total := 0
	for _, msg := range messages {
		n, err := t.countMessage(msg, model)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total + replyPrimingTokens, nil
}

func (t *Tiktoken) countMessage(msg types.Message, model string) (int, error) {
	total, err := t.CountText(msg.Role, model)
	if err != nil {
		return 0, err
	}

	if !msg.Content.IsMultimodal() {
		n, err := t.CountText(msg.Content.Text, model)
		if err != nil {
			return 0, err
		}
		return total + n, nil
	}

	for _, part := range msg.Content.Parts {
		switch part.Type {
		case types.ContentTypeText:
			n, err := t.CountText(part.Text, model)
			if err != nil {
				return 0, err
			}
			total += n
		case types.ContentTypeImageURL:
			// Flat base cost; tile math needs image dimensions we
			// never download.
			total += imageBaseTokens
		}
	}
	return total, nil
}
