package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// Common TTS errors.
var (
	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidFormat is returned when the requested format is not supported.
	ErrInvalidFormat = errors.New("invalid or unsupported audio format")

	// ErrRateLimited is returned when API rate limits are exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServiceUnavailable is returned when the TTS service is unavailable.
	ErrServiceUnavailable = errors.New("TTS service unavailable")

	// ErrEngineUnavailable is returned when an engine cannot run on this host.
	ErrEngineUnavailable = errors.New("TTS engine unavailable")

	// ErrAllEnginesFailed is returned by Chain when no engine spoke the text.
	ErrAllEnginesFailed = errors.New("all TTS engines failed")

	// ErrInvalidAccent is returned by ParseAccent for an unknown accent.
	ErrInvalidAccent = errors.New("invalid voice accent")
)

// SynthesisError provides detailed error information from TTS providers.
type SynthesisError struct {
	// Provider is the TTS provider that returned the error.
	Provider string

	// Code is the provider-specific error code.
	Code string

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error

	// Retryable indicates if the error is transient.
	Retryable bool
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(provider, code, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

// statusCause maps an HTTP status to a sentinel.
func statusCause(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrServiceUnavailable
	default:
		return nil
	}
}
