// Package trace carries request correlation identifiers through a context and
// stamps them onto outgoing HTTP headers.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	nethttp "net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the header used to correlate a request across services
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// NewRequestID returns a fresh random request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores a request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// EnsureRequestID returns a context that is guaranteed to carry a request id,
// together with that id. An existing id is reused.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := NewRequestID()
	return WithRequestID(ctx, id), id
}

// WithTraceParent stores a W3C traceparent value in the context.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// TraceParentFromContext returns the traceparent stored in ctx, if any.
func TraceParentFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tp, ok := ctx.Value(traceParentKey).(string)
	return tp, ok && tp != ""
}

// GenerateTraceParent creates a version 00 traceparent with random ids.
// Format: 00-<32 hex trace id>-<16 hex span id>-01
func GenerateTraceParent() string {
	traceID := randomID(16)
	spanID := randomID(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// Inject writes the request id (under idHeader, X-Request-ID when empty) and,
// when w3c is set, a traceparent onto h. Values already present in h win.
func Inject(ctx context.Context, h nethttp.Header, idHeader string, w3c bool) {
	if idHeader == "" {
		idHeader = HeaderXRequestID
	}
	if h.Get(idHeader) == "" {
		id, ok := RequestIDFromContext(ctx)
		if !ok {
			id = NewRequestID()
		}
		h.Set(idHeader, id)
	}
	if !w3c || h.Get(HeaderTraceParent) != "" {
		return
	}
	tp, ok := TraceParentFromContext(ctx)
	if !ok {
		tp = GenerateTraceParent()
	}
	h.Set(HeaderTraceParent, tp)
}

// randomID returns n random bytes, never all zero (all-zero ids are invalid
// in W3C trace context).
func randomID(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		b = make([]byte, n)
	}
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	b[n-1] = 0x01
	return b
}
