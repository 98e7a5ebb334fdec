package models

import "time"

// RequestLog is a logged proxy request.
type RequestLog struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	UserID           string    `json:"user_id"`
	Model            string    `json:"model"`
	AttemptedModels  string    `json:"attempted_models,omitempty"` // comma separated, attempt order
	Provider         string    `json:"provider"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	IsStreaming      bool      `json:"is_streaming"`
	StatusCode       int       `json:"status_code"`
	ErrorType        string    `json:"error_type,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// LogFilter narrows a request log query.
type LogFilter struct {
	UserID    string
	Model     string
	ErrorType string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
