package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client performs single HTTP exchanges.
type Client interface {
	// Do sends req once. A response with any status code is returned with a
	// nil error; err is a ClientError when no response could be obtained.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request represents one outbound HTTP exchange
type Request struct {
	Method  string
	URL     string
	Headers nethttp.Header
	Body    []byte
	// Timeout bounds this exchange. Zero falls back to the client timeout.
	Timeout time.Duration
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the client configuration
type Config struct {
	Timeout              time.Duration
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string
	// Transport replaces http.DefaultTransport when set
	Transport nethttp.RoundTripper
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for request-id propagation (default: X-Request-ID)
	TraceIDHeader string
	// EnableW3CTrace adds a traceparent header to every request
	EnableW3CTrace bool
	// RateLimit is the sustained number of requests per second; zero disables limiting
	RateLimit rate.Limit
	// RateBurst is the limiter bucket size (minimum 1 when limiting)
	RateBurst int
}
