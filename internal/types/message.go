// Package types provides the wire types shared between the chat transport,
// the orchestrator, and the upstream provider clients.
package types

import "encoding/json"

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of conversation history. Content is polymorphic:
// a plain string or an array of text/image parts for multimodal input.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content holds either simple text or multimodal parts. At most one of the
// two fields is populated.
type Content struct {
	Text  string
	Parts []ContentPart
}

// IsMultimodal reports whether the content carries structured parts.
func (c Content) IsMultimodal() bool {
	return len(c.Parts) > 0
}

// MarshalJSON emits a bare string for text content and an array for parts.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts both the string and the array form.
func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		c.Text = ""
		return nil
	}

	return nil // tolerate null content
}

// String flattens the content to plain text, concatenating text parts.
func (c Content) String() string {
	if c.Text != "" {
		return c.Text
	}
	var out string
	for _, part := range c.Parts {
		if part.Type == ContentTypeText {
			out += part.Text
		}
	}
	return out
}

// ContentPart is one element of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Content part type constants.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// ImageURL references an image in multimodal content.
type ImageURL struct {
	URL string `json:"url"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: Content{Text: text}}
}
