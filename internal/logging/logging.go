// Package logging provides context-aware logging utilities.
package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// RequestIDKey is the context key for the request ID.
type RequestIDKey struct{}

// OperationIDKey is the context key for the session operation ID.
type OperationIDKey struct{}

// GetRequestID returns the request ID from the context, or empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithOperation tags ctx with a fresh operation id and the operation name.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationIDKey{}, op+":"+uuid.NewString())
}

// GetOperationID returns the operation ID from the context, or empty string if not found.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Logger returns a logger with the request_id and operation_id from the context.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if requestID := GetRequestID(ctx); requestID != "" {
		l = l.With("request_id", requestID)
	}
	if opID := GetOperationID(ctx); opID != "" {
		l = l.With("operation_id", opID)
	}
	return l
}
