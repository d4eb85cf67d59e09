package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type requestCtxKey struct{}

// ValidateRequestID checks that id is a short token of letters, digits,
// hyphens and underscores.
func ValidateRequestID(id string) error {
	if id == "" {
		return fmt.Errorf("request id cannot be empty")
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("request id exceeds max length %d", maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("request id contains invalid characters")
	}
	return nil
}

// WithRequestID adds request ID to context.
// Invalid IDs are dropped and the context is returned unchanged.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ValidateRequestID(requestID) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}
