package logger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// NewRequestID returns a short random id for correlating log lines.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ContextWithRequestID stores a request id in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ForRequest makes sure ctx carries a request id (reusing the caller's, e.g.
// from X-Request-Id) and returns base tagged with it.
func ForRequest(ctx context.Context, base *zap.Logger) (context.Context, *zap.Logger) {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = NewRequestID()
		ctx = ContextWithRequestID(ctx, id)
	}
	return ctx, base.With(zap.String("request_id", id))
}
