package operator

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gaborage/netlayer/config"
	"github.com/gaborage/netlayer/httpclient"
	"github.com/gaborage/netlayer/internal/tracking"
	"github.com/gaborage/netlayer/logger"
	"github.com/gaborage/netlayer/trace"
)

// DefaultQueueName identifies the execution lane when none is configured.
const DefaultQueueName = "default.http.operator.queue"

// HTTPOperator is the request submission contract.
type HTTPOperator interface {
	// SendRequest enqueues item and returns immediately. The completion runs
	// exactly once, on the operator lane.
	SendRequest(ctx context.Context, item *RequestItem)
	// CancelAllRequests cancels every item that has not finished yet.
	CancelAllRequests()
	// SetToken decorates and stores the credential used by later attempts.
	SetToken(token string)
	// ClearToken drops the credential.
	ClearToken()
}

// Operator is the default HTTPOperator.
type Operator struct {
	base   *url.URL
	queue  *dispatchQueue
	engine *engine
	creds  *credentials
	log    logger.Logger

	closeOnce         sync.Once
	unregisterMetrics func()
}

var _ HTTPOperator = (*Operator)(nil)

// Builder configures an Operator.
type Builder struct {
	log         logger.Logger
	baseURL     string
	transport   httpclient.Client
	refresh     RefreshEndpointProvider
	decorate    TokenDecorator
	interpret   TokenInterpreter
	queueName   string
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error
}

// NewBuilder creates a builder with the default policy. A nil logger
// disables logging.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		log:         log,
		decorate:    BearerDecorator,
		interpret:   JSONTokenInterpreter("token"),
		queueName:   DefaultQueueName,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		sleep:       sleepContext,
	}
}

// WithBaseURL sets the absolute address endpoint paths are resolved against
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.baseURL = baseURL
	return b
}

// WithTransport replaces the default httpclient transport
func (b *Builder) WithTransport(transport httpclient.Client) *Builder {
	b.transport = transport
	return b
}

// WithRefreshEndpoint enables token refresh on 401 responses
func (b *Builder) WithRefreshEndpoint(provider RefreshEndpointProvider) *Builder {
	b.refresh = provider
	return b
}

// WithTokenDecorator sets how raw tokens become header values
func (b *Builder) WithTokenDecorator(decorate TokenDecorator) *Builder {
	if decorate != nil {
		b.decorate = decorate
	}
	return b
}

// WithTokenInterpreter sets how refresh responses are parsed
func (b *Builder) WithTokenInterpreter(interpret TokenInterpreter) *Builder {
	if interpret != nil {
		b.interpret = interpret
	}
	return b
}

// WithQueueName names the execution lane in logs and metrics
func (b *Builder) WithQueueName(name string) *Builder {
	if name != "" {
		b.queueName = name
	}
	return b
}

// WithMaxAttempts sets the attempt ceiling per request
func (b *Builder) WithMaxAttempts(n int) *Builder {
	b.maxAttempts = n
	return b
}

// WithBackoff sets the wait before a transient retry
func (b *Builder) WithBackoff(d time.Duration) *Builder {
	b.backoff = d
	return b
}

// withSleep replaces the backoff wait; tests use it to count waits
func (b *Builder) withSleep(sleep func(context.Context, time.Duration) error) *Builder {
	b.sleep = sleep
	return b
}

// Build validates the configuration and starts the operator lane.
func (b *Builder) Build() (*Operator, error) {
	base, err := config.ParseBaseURL(b.baseURL)
	if err != nil {
		return nil, err
	}
	if b.maxAttempts < 1 {
		return nil, config.NewInvalidFieldError("operator.maxattempts", "must be at least 1", nil)
	}
	if b.backoff < 0 {
		return nil, config.NewInvalidFieldError("operator.backoff", "must not be negative", nil)
	}

	transport := b.transport
	if transport == nil {
		transport = httpclient.NewBuilder(b.log).Build()
	}

	creds := &credentials{decorate: b.decorate}
	op := &Operator{
		base:  base,
		creds: creds,
		log:   b.log,
		engine: &engine{
			transport:   transport,
			creds:       creds,
			base:        base,
			refresh:     b.refresh,
			interpret:   b.interpret,
			maxAttempts: b.maxAttempts,
			backoff:     b.backoff,
			sleep:       b.sleep,
			queue:       b.queueName,
			log:         b.log,
		},
		queue: newDispatchQueue(b.queueName),
	}
	op.unregisterMetrics = tracking.RegisterQueueMetrics(b.queueName, op.queue.len)

	b.log.Info().
		Str("queue", b.queueName).
		Str("base_url", base.String()).
		Int("max_attempts", b.maxAttempts).
		Dur("backoff", b.backoff).
		Msg("operator started")
	return op, nil
}

// NewFromConfig builds an Operator and its transport from loaded configuration.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Operator, error) {
	if cfg == nil {
		return nil, config.NewMissingFieldError("operator")
	}

	transport := httpclient.NewBuilder(log).
		WithTimeout(cfg.Transport.Timeout).
		WithTraceIDHeader(cfg.Transport.TraceIDHeader).
		WithW3CTrace(cfg.Transport.W3CTrace).
		WithRateLimit(cfg.Transport.RateLimit.Limit, cfg.Transport.RateLimit.Burst)
	if cfg.Transport.LogPayloads {
		transport = transport.WithPayloadLogging(cfg.Transport.MaxPayloadLogBytes)
	}

	b := NewBuilder(log).
		WithBaseURL(cfg.Operator.BaseURL).
		WithTransport(transport.Build()).
		WithQueueName(cfg.Operator.Queue).
		WithMaxAttempts(cfg.Operator.MaxAttempts).
		WithBackoff(cfg.Operator.Backoff).
		WithTokenDecorator(SchemeDecorator(cfg.Operator.Auth.Scheme))

	if field := cfg.Operator.Auth.Refresh.Field; field != "" {
		b = b.WithTokenInterpreter(JSONTokenInterpreter(field))
	}
	if refresh := cfg.Operator.Auth.Refresh; refresh.Path != "" {
		b = b.WithRefreshEndpoint(func() Endpoint {
			return Endpoint{Path: refresh.Path, Method: refresh.Method}
		})
	}
	return b.Build()
}

// SendRequest enqueues item. A nil item is ignored.
func (o *Operator) SendRequest(ctx context.Context, item *RequestItem) {
	if item == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, requestID := trace.EnsureRequestID(ctx)

	prep, prepErr := prepare(o.base, item.Endpoint)
	method, target := item.Endpoint.Method, item.Endpoint.Path
	if prep != nil {
		method, target = prep.method, prep.url
	}

	submitted := time.Now()
	attempts := 0

	action := func(ctx context.Context) ([]byte, *NetworkError) {
		if prepErr != nil {
			return nil, newInvalidRequestError(prepErr)
		}
		ctx, span := tracking.StartSpan(ctx, tracking.SpanRequest, o.queue.name, method, target, requestID)
		body, calls, nerr := o.engine.execute(ctx, prep, attempt{})
		attempts = calls

		outcome, code := outcomeOf(nerr)
		tracking.EndSpan(span, outcome, code, calls, asError(nerr))
		return body, nerr
	}

	deliver := func(body []byte, nerr *NetworkError) {
		outcome, code := outcomeOf(nerr)
		elapsed := time.Since(submitted)
		tracking.RecordRequest(ctx, o.queue.name, method, outcome, code, elapsed)
		o.logOutcome(requestID, method, target, outcome, code, attempts, elapsed, nerr)

		if item.Completion != nil {
			item.Completion(body, asError(nerr))
		}
	}

	o.log.Debug().
		Str("queue", o.queue.name).
		Str("request_id", requestID).
		Str("method", method).
		Str("url", target).
		Msg("operator request submitted")

	o.queue.submit(newOperation(ctx, requestID, action, deliver))
}

// Do submits ep and blocks until its result is delivered or ctx is done.
// When ctx ends first Do returns a StatusCancelled error at once; an item
// that is already executing still finishes its current exchange and its
// result is dropped.
func (o *Operator) Do(ctx context.Context, ep Endpoint) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	o.SendRequest(ctx, &RequestItem{
		Endpoint: ep,
		Completion: func(body []byte, err error) {
			ch <- result{body: body, err: err}
		},
	})
	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		return nil, newCancelledError(context.Cause(ctx))
	}
}

// CancelAllRequests cancels every unfinished item. Items waiting in the
// queue complete with StatusCancelled without reaching the transport; a
// running item stops at its next backoff or attempt.
func (o *Operator) CancelAllRequests() {
	n := o.queue.cancelAll()
	o.log.Info().Str("queue", o.queue.name).Int("cancelled", n).Msg("operator cancelled all requests")
}

// SetToken decorates and stores token for later attempts.
func (o *Operator) SetToken(token string) {
	o.creds.set(token)
}

// ClearToken drops the stored credential.
func (o *Operator) ClearToken() {
	o.creds.clear()
}

// Token returns the decorated credential, empty when none is held.
func (o *Operator) Token() string {
	return o.creds.get()
}

// Suspend stops the lane from starting new items. Items cancelled while the
// lane is suspended still complete right away, in submission order, wherever
// they sit in the queue; live items keep their place until Resume.
func (o *Operator) Suspend() {
	o.queue.suspend()
}

// Resume restarts a suspended lane.
func (o *Operator) Resume() {
	o.queue.resume()
}

// Suspended reports whether the lane is suspended.
func (o *Operator) Suspended() bool {
	return o.queue.isSuspended()
}

// Pending returns the number of items waiting to start.
func (o *Operator) Pending() int {
	return o.queue.len()
}

// QueueName returns the execution lane identity.
func (o *Operator) QueueName() string {
	return o.queue.name
}

// Close cancels all items, waits for their completions and stops the lane.
// Later submissions complete with StatusCancelled. Close must not be called
// from a completion.
func (o *Operator) Close() {
	o.queue.close()
	o.closeOnce.Do(func() {
		if o.unregisterMetrics != nil {
			o.unregisterMetrics()
		}
		o.log.Info().Str("queue", o.queue.name).Msg("operator stopped")
	})
}

func (o *Operator) logOutcome(requestID, method, target, outcome string, code, attempts int, elapsed time.Duration, nerr *NetworkError) {
	if nerr == nil {
		o.log.Info().
			Str("queue", o.queue.name).
			Str("request_id", requestID).
			Str("method", method).
			Str("url", target).
			Int("attempts", attempts).
			Dur("elapsed", elapsed).
			Msg("operator request completed")
		return
	}
	o.log.Warn().
		Err(nerr).
		Str("queue", o.queue.name).
		Str("request_id", requestID).
		Str("method", method).
		Str("url", target).
		Str("outcome", outcome).
		Int("status", code).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Msg("operator request failed")
}

func outcomeOf(nerr *NetworkError) (string, int) {
	if nerr == nil {
		return tracking.OutcomeSuccess, 0
	}
	return nerr.Status.String(), nerr.StatusCode
}
