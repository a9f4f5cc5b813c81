package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the global logger annotated with the request id, if any.
func FromContext(ctx context.Context) *slog.Logger {
	l := GetLogger()
	if id := GetRequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}
