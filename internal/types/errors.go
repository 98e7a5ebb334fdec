package types

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON error body returned for failures that happen before
// the event stream starts (validation, auth, preflight balance).
type APIError struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the user-facing error information.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// Error type constants for pre-stream responses.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeBalance        = "insufficient_balance_error"
	ErrorTypeServer         = "server_error"
)

// NewAPIError creates an API error body.
func NewAPIError(message, errType string) *APIError {
	return &APIError{Error: ErrorDetail{Message: message, Type: errType}}
}

// WriteError writes an API error with the given HTTP status.
func WriteError(w http.ResponseWriter, statusCode int, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(err)
}

// WriteJSON writes an arbitrary JSON response body.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrInvalidRequest creates an invalid request error body.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(message, ErrorTypeInvalidRequest)
}

// ErrAuthentication creates an authentication error body.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(message, ErrorTypeAuthentication)
}

// ErrServer creates a server error body.
func ErrServer(message string) *APIError {
	return NewAPIError(message, ErrorTypeServer)
}
