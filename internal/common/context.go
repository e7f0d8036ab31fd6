package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyCorrelationID contextKey = "correlation_id"
	ContextKeyDispatchID    contextKey = "dispatch_id"
)

// WithRequestID adds an inbound HTTP request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithCorrelationID adds the OCR service correlation identifier to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// CorrelationIDFromContext extracts the correlation identifier from context
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// WithDispatchID adds the dispatch attempt ID to the context
func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyDispatchID, id)
}

// DispatchIDFromContext extracts the dispatch attempt ID from context
func DispatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyDispatchID).(string); ok {
		return id
	}
	return ""
}

// WithTimeout creates a context with the specified timeout; d <= 0 means no timeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// LogAttrs returns the identifiers carried by ctx as slog key/value pairs.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "http_request_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := DispatchIDFromContext(ctx); id != "" {
		attrs = append(attrs, "dispatch_id", id)
	}
	return attrs
}
