package types

// ChatRequest is the inbound body of POST /v1/chat/stream. It is transient:
// conversation history lives on the client and is replayed with every request.
type ChatRequest struct {
	// Model is the primary model identifier; must be present in the catalog.
	Model string `json:"model"`

	// SystemPrompt may be empty. How it reaches the upstream provider is
	// decided per model family by the message adapter.
	SystemPrompt string `json:"systemPrompt"`

	// Messages is the ordered history, oldest first.
	Messages []Message `json:"messages"`
}

// Usage is the token accounting block reported by an upstream provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ImageRequest is the inbound body of POST /v1/images/generations.
type ImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n,omitempty"`
}

// ImageResponse carries generated image references plus the billing outcome.
type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`

	// CreditsCharged and NewBalance describe the ledger debit for this
	// generation. Zero charge means the model is unmetered.
	CreditsCharged int64 `json:"creditsCharged"`
	NewBalance     int64 `json:"newBalance"`
}

// ImageData is a single generated image.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}
