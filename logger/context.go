package logger

import (
	"context"
	"sync/atomic"
	"time"
)

type contextKey string

const (
	// httpCounterKey tracks the number of outbound HTTP calls made for a request
	httpCounterKey contextKey = "http_call_counter"
	// httpElapsedKey tracks the total time spent in outbound HTTP calls
	httpElapsedKey contextKey = "http_elapsed_nanos"
)

// WithHTTPCounter returns a context carrying a fresh outbound call counter
// and elapsed-time accumulator.
func WithHTTPCounter(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, httpCounterKey, new(int64))
	return context.WithValue(ctx, httpElapsedKey, new(int64))
}

// IncrementHTTPCounter adds one outbound call and returns the new total.
// It returns 0 when ctx carries no counter.
func IncrementHTTPCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		return atomic.AddInt64(counter, 1)
	}
	return 0
}

// GetHTTPCounter returns the number of outbound calls recorded in ctx.
func GetHTTPCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(httpCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddHTTPElapsed adds d to the outbound elapsed time recorded in ctx.
func AddHTTPElapsed(ctx context.Context, d time.Duration) {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, int64(d))
	}
}

// GetHTTPElapsed returns the outbound elapsed time recorded in ctx.
func GetHTTPElapsed(ctx context.Context) time.Duration {
	if elapsed, ok := ctx.Value(httpElapsedKey).(*int64); ok && elapsed != nil {
		return time.Duration(atomic.LoadInt64(elapsed))
	}
	return 0
}
