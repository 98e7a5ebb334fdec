package orchestrator

import (
	"strings"

	"github.com/tmanole/chatgate/internal/types"
)

// ValidationError is a request-shape problem caught before any upstream
// contact. It maps to a 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// validate checks the request shape and returns the message list with
// user-authored text capped and sanitized. Assistant turns pass through
// untouched; rewriting model output the client already has would desync the
// conversation.
func (o *Orchestrator) validate(req *types.ChatRequest) ([]types.Message, error) {
	if req == nil {
		return nil, invalid("request body is required")
	}
	if req.Model == "" {
		return nil, invalid("model is required")
	}
	if !o.catalog.IsAllowed(req.Model) {
		return nil, invalid("model is not available: " + req.Model)
	}
	if len(req.Messages) == 0 {
		return nil, invalid("messages must be a non-empty array")
	}
	if o.cfg.MaxMessages > 0 && len(req.Messages) > o.cfg.MaxMessages {
		return nil, invalid("too many messages in conversation history")
	}

	out := make([]types.Message, len(req.Messages))
	for i, msg := range req.Messages {
		// Inbound history carries user and assistant turns only. The system
		// prompt travels in its own field; a system-role message in the
		// history would bypass the user-text sanitization below.
		switch msg.Role {
		case types.RoleUser, types.RoleAssistant:
		default:
			return nil, invalid("message has an invalid role")
		}
		if msg.Content.Text == "" && !msg.Content.IsMultimodal() {
			return nil, invalid("message content must not be empty")
		}

		if msg.Role == types.RoleUser {
			msg = cleanUserMessage(msg, o.cfg.MaxMessageChars)
		}
		out[i] = msg
	}
	return out, nil
}

// cleanUserMessage caps and sanitizes one user turn.
func cleanUserMessage(msg types.Message, maxChars int) types.Message {
	if msg.Content.IsMultimodal() {
		parts := make([]types.ContentPart, len(msg.Content.Parts))
		copy(parts, msg.Content.Parts)
		for i, part := range parts {
			if part.Type == types.ContentTypeText {
				parts[i].Text = sanitizeText(truncate(part.Text, maxChars))
			}
		}
		msg.Content = types.Content{Parts: parts}
		return msg
	}
	msg.Content = types.Content{Text: sanitizeText(truncate(msg.Content.Text, maxChars))}
	return msg
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	// Cut on a rune boundary.
	cut := maxChars
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}

// roleMarkers are chat-template control sequences that let a user turn
// impersonate another role. Stripped, not rejected: the surrounding text is
// usually legitimate.
var roleMarkers = []string{
	"<|im_start|>",
	"<|im_end|>",
	"<|system|>",
	"<|assistant|>",
	"<|user|>",
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
}

// sanitizeText strips role-impersonation markers and control characters from
// user-authored text. Pure string transform.
func sanitizeText(text string) string {
	for _, marker := range roleMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}

	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)
}
