package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequest derives a logger tagged with a fresh request id and stores it in ctx.
func WithRequest(ctx context.Context, base *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := base.With(append([]zap.Field{zap.String("request_id", uuid.NewString())}, fields...)...)
	return ContextWithLogger(ctx, l), l
}
