package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the conditions the caller branches on. Everything else
// stays a generic *APIError.
var (
	// ErrRateLimited maps HTTP 429. The caller shows a "wait a moment"
	// message; no automatic retry is performed.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized maps HTTP 401/403, usually a missing or expired token.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError carries the backend's status and message for a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %s", http.StatusText(e.Status))
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}
