package conduit

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for the dispatch request ID (uuid.UUID). The same ID is recorded in the dispatch journal
	RequestIDKey contextKey = "RequestID"
	// FormatKey is the context key for the negotiated response format (Format)
	FormatKey contextKey = "Format"
	// ResultKey is the context key for the bound dispatch result (*Result)
	ResultKey contextKey = "Result"
)

// RequestIDHeader is the header consulted for an incoming request ID and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// ContextWithRequestID returns a new request with a request ID in the context
func ContextWithRequestID(req *http.Request, requestID uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), RequestIDKey, requestID)
	return req.WithContext(ctx)
}

// RequestIDFromContext returns the request ID from the context if it exists
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequestIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithFormat returns a new request with the negotiated format in the context
func ContextWithFormat(req *http.Request, format Format) *http.Request {
	ctx := context.WithValue(req.Context(), FormatKey, format)
	return req.WithContext(ctx)
}

// FormatFromContext returns the negotiated format from the context if it exists
func FormatFromContext(ctx context.Context) (Format, bool) {
	format, ok := ctx.Value(FormatKey).(Format)
	return format, ok
}

// ContextWithResult returns a new request with the dispatch result in the context
func ContextWithResult(req *http.Request, result *Result) *http.Request {
	ctx := context.WithValue(req.Context(), ResultKey, result)
	return req.WithContext(ctx)
}

// ResultFromContext returns the dispatch result from the context if it exists
func ResultFromContext(ctx context.Context) (*Result, bool) {
	result, ok := ctx.Value(ResultKey).(*Result)
	return result, ok && result != nil
}

// requestID returns the request ID already stored on the request, the one sent in the
// X-Request-ID header, or a fresh UUIDv7 in that order.
func requestID(req *http.Request) uuid.UUID {
	if id, ok := RequestIDFromContext(req.Context()); ok {
		return id
	}
	if id, err := uuid.Parse(req.Header.Get(RequestIDHeader)); err == nil {
		return id
	}
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}
