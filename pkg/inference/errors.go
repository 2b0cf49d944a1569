package inference

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyEndpoint is returned when no endpoint is configured.
	ErrEmptyEndpoint = errors.New("inference: endpoint required")

	// ErrInvalidResponse is returned when the body does not carry a completion.
	ErrInvalidResponse = errors.New("inference: invalid response")
)

// APIError represents a non-2xx response from the endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the response body, truncated.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("Server error: %d - %s", e.StatusCode, e.Body)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsNotFound returns true if the resource was not found (HTTP 404).
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// Describe folds an error into the text shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, ErrInvalidResponse):
		return MsgInvalidResponse
	}

	if msg := err.Error(); msg != "" {
		return "Error: " + msg
	}
	return MsgUnknownError
}
