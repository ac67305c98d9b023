package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// writeCompletionError maps a completion-pipeline failure to its HTTP shape.
// Every failure kind keeps its own status and code; none collapse into a
// generic success or empty output.
func writeCompletionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPromptTooLong):
		writeError(w, http.StatusBadRequest, "PROMPT_TOO_LONG", "Prompt exceeds maximum length")
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
	case errors.Is(err, ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Completion provider unreachable")
	case errors.Is(err, ErrUpstreamStatus):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Completion provider returned an error")
	case errors.Is(err, ErrUpstreamMalformed):
		writeError(w, http.StatusBadGateway, "UPSTREAM_MALFORMED", "Completion provider returned an unexpected response")
	case errors.Is(err, ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "Completion provider not configured")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Completion failed")
	}
}
