package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/netlayer/logger"
	"github.com/gaborage/netlayer/trace"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps logged payload previews
	DefaultMaxPayloadLogBytes = 1024
)

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	limiter              *rate.Limiter
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            int64
}

// NewClient creates a client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new client builder. A nil logger disables logging.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:              DefaultTimeout,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
			MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
			TraceIDHeader:        trace.HeaderXRequestID,
		},
		logger: log,
	}
}

// WithTimeout sets the default request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithTransport replaces the underlying round tripper
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.config.Transport = rt
	return b
}

// WithPayloadLogging enables debug logging of headers and bodies, truncated
// to maxBytes (DefaultMaxPayloadLogBytes when maxBytes <= 0)
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithTraceIDHeader sets the header carrying the request id
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	if header != "" {
		b.config.TraceIDHeader = header
	}
	return b
}

// WithW3CTrace enables traceparent propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithRateLimit throttles outbound requests to limit per second with the given burst
func (b *Builder) WithRateLimit(limit float64, burst int) *Builder {
	b.config.RateLimit = rate.Limit(limit)
	b.config.RateBurst = burst
	return b
}

// Build creates the client with the configured options
func (b *Builder) Build() Client {
	cfg := b.config

	httpClient := &nethttp.Client{}
	if cfg.Transport != nil {
		httpClient.Transport = cfg.Transport
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	// request-id propagation runs first so user interceptors can see the header
	reqInterceptors := make([]RequestInterceptor, 0, len(cfg.RequestInterceptors)+1)
	reqInterceptors = append(reqInterceptors, NewTraceInterceptor(cfg.TraceIDHeader, cfg.EnableW3CTrace))
	reqInterceptors = append(reqInterceptors, cfg.RequestInterceptors...)

	return &client{
		httpClient:           httpClient,
		logger:               b.logger,
		config:               cfg,
		limiter:              limiter,
		requestInterceptors:  reqInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}
}

// NewTraceInterceptor stamps the context request id (or a fresh one) under
// header and, when w3c is set, a traceparent. Existing headers are kept.
func NewTraceInterceptor(header string, w3c bool) RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		trace.Inject(ctx, req.Header, header, w3c)
		return nil
	}
}

// Do performs a single HTTP exchange
func (c *client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewRateLimitError(err)
		}
	}

	timeout := c.timeoutFor(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)
	logger.IncrementHTTPCounter(ctx)

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get(c.traceHeader())
	c.logRequest(httpReq, req.Body, requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		elapsed := time.Since(start)
		logger.AddHTTPElapsed(ctx, elapsed)
		c.logFailure(httpReq, requestID, elapsed, err)
		if isTimeout(err) {
			return nil, NewTimeoutError("request timeout", timeout, err)
		}
		return nil, NewNetworkError("request execution failed", err)
	}

	resp, err := c.buildResponse(ctx, start, callCount, timeout, httpReq, httpResp)
	if err != nil {
		return nil, err
	}
	logger.AddHTTPElapsed(ctx, resp.Stats.ElapsedTime)
	c.logResponse(resp, requestID)
	return resp, nil
}

func (c *client) timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if c.config.Timeout > 0 {
		return c.config.Timeout
	}
	return DefaultTimeout
}

func (c *client) traceHeader() string {
	if c.config.TraceIDHeader != "" {
		return c.config.TraceIDHeader
	}
	return trace.HeaderXRequestID
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

// applyHeaders applies default and request headers; request headers win
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
}

// buildRequest constructs an *http.Request, applies headers, and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, req *Request) (*nethttp.Request, error) {
	method := req.Method
	if method == "" {
		method = nethttp.MethodGet
	}

	var body io.Reader = nethttp.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewValidationError("failed to create HTTP request: "+err.Error(), "url")
	}

	c.applyHeaders(httpReq, req)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
// timeout is the deadline applied to the whole exchange, body read included.
func (c *client) buildResponse(ctx context.Context, start time.Time, callCount int64, timeout time.Duration, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("reading response body", timeout, err)
		}
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}
