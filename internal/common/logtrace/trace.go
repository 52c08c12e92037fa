package logtrace

import (
	"context"

	"github.com/rs/zerolog"
)

type requestIdKey struct{}

// WithRequestId returns a copy of ctx carrying the request id.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey{}, id)
}

// RequestIdFromContext returns the request id stored by WithRequestId, or "".
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey{}).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether the global level is trace.
func IsTraceEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.TraceLevel
}
