package logtrace

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mgmtapi/mgmtapi-go/internal/common/uuid"
)

type requestIDKey struct{}

// WithRequestID returns a context carrying a new request id, unless ctx already has one.
func WithRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIdFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewRequestID()
	return context.WithValue(ctx, requestIDKey{}, id), id
}

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or if no request ID is found.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIDKey{}).(string)
	if !ok {
		return ""
	}
	return r
}

// Logger returns l annotated with the request id carried by ctx, if any.
func Logger(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := RequestIdFromContext(ctx); id != "" {
		return l.With().Str("request_id", id).Logger()
	}
	return l
}
