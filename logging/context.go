package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey ctxKey = "request_id"

// GetRequestID extracts the request ID from ctx.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(RequestIDKey).(string); ok {
		return s
	}
	return ""
}

// SetRequestID adds a request ID to ctx.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithContext returns logger annotated with the request ID found in ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if requestID := GetRequestID(ctx); requestID != "" {
		return logger.With(zap.String("request_id", requestID))
	}
	return logger
}

type loggerKey struct{}

// FromContext returns the Logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return Global()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// ToContext stores the Logger in ctx.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
