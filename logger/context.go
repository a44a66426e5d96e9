package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// added to every record logged with that context.
const (
	// ContextKeySessionID identifies the running assistant session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyRequestID identifies one description request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyMode is the request mode ("auto" or "question").
	ContextKeyMode contextKey = "mode"

	// ContextKeyProvider identifies the remote service (e.g., "gemini", "whisper").
	ContextKeyProvider contextKey = "provider"

	// ContextKeyLoop identifies the worker loop ("capture", "inference", "voice", "speech").
	ContextKeyLoop contextKey = "loop"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyRequestID,
	ContextKeyMode,
	ContextKeyProvider,
	ContextKeyLoop,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithMode returns a new context with the request mode set.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ContextKeyMode, mode)
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithLoop returns a new context with the worker loop name set.
func WithLoop(ctx context.Context, loop string) context.Context {
	return context.WithValue(ctx, ContextKeyLoop, loop)
}

// LoggingFields holds several context fields for WithLoggingContext.
type LoggingFields struct {
	SessionID string
	RequestID string
	Mode      string
	Provider  string
	Loop      string
}

// WithLoggingContext returns a new context with multiple logging fields set at once.
// Only non-empty values are set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.RequestID != "" {
		ctx = WithRequestID(ctx, fields.RequestID)
	}
	if fields.Mode != "" {
		ctx = WithMode(ctx, fields.Mode)
	}
	if fields.Provider != "" {
		ctx = WithProvider(ctx, fields.Provider)
	}
	if fields.Loop != "" {
		ctx = WithLoop(ctx, fields.Loop)
	}
	return ctx
}

// ExtractLoggingFields returns the logging fields stored in ctx.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	get := func(k contextKey) string {
		if v, ok := ctx.Value(k).(string); ok {
			return v
		}
		return ""
	}
	return LoggingFields{
		SessionID: get(ContextKeySessionID),
		RequestID: get(ContextKeyRequestID),
		Mode:      get(ContextKeyMode),
		Provider:  get(ContextKeyProvider),
		Loop:      get(ContextKeyLoop),
	}
}
