package vision

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned when the service or the local hourly budget
	// refuses the request.
	ErrRateLimited = errors.New("vision rate limited")

	// ErrNetwork is returned for transport failures, timeouts and 5xx responses.
	ErrNetwork = errors.New("vision network error")

	// ErrInvalidResponse is returned when the reply cannot be turned into a
	// description: bad JSON, no candidates, blocked content or empty text.
	ErrInvalidResponse = errors.New("vision invalid response")

	// ErrEmptyImage is returned when Describe is called without image data.
	ErrEmptyImage = errors.New("empty image")
)

// APIError is the error body returned by the Gemini API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error (code %d, status %s): %s", e.Code, e.Status, e.Message)
}

// Unwrap maps the HTTP status onto the package sentinels so callers can use
// errors.Is(err, ErrRateLimited) and friends.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= http.StatusInternalServerError:
		return ErrNetwork
	default:
		return ErrInvalidResponse
	}
}

// IsAuthError reports whether the key was rejected.
func (e *APIError) IsAuthError() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden ||
		e.Status == "PERMISSION_DENIED" || e.Status == "UNAUTHENTICATED"
}

type errorResponse struct {
	Error *APIError `json:"error"`
}
