package operator

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gaborage/netlayer/httpclient"
	"github.com/gaborage/netlayer/internal/tracking"
	"github.com/gaborage/netlayer/logger"
)

const (
	// DefaultMaxAttempts is the attempt ceiling per request
	DefaultMaxAttempts = 3
	// DefaultBackoff is the wait before retrying a transient failure
	DefaultBackoff = time.Second
)

// attempt is the retry state of one chain of calls.
type attempt struct {
	count int
	// last is the classification that triggered the most recent retry
	last     Status
	lastCode int
	// refreshing marks the chain driving a refresh exchange
	refreshing bool
}

// engine applies the retry and refresh policy around the transport.
type engine struct {
	transport   httpclient.Client
	creds       *credentials
	base        *url.URL
	refresh     RefreshEndpointProvider
	interpret   TokenInterpreter
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	queue       string
	log         logger.Logger
}

// execute drives prep to a terminal result. It returns the body on success
// and the number of transport calls made for this chain.
func (e *engine) execute(ctx context.Context, prep *preparedRequest, at attempt) ([]byte, int, *NetworkError) {
	calls := 0
	for {
		if at.count >= e.maxAttempts {
			return nil, calls, ceilingError(at)
		}
		if err := ctx.Err(); err != nil {
			return nil, calls, newCancelledError(context.Cause(ctx))
		}

		e.log.Debug().
			Str("queue", e.queue).
			Str("method", prep.method).
			Str("url", prep.url).
			Int("attempt", at.count+1).
			Str("last_status", lastStatus(at)).
			Msg("operator attempt")

		req := prep.attemptRequest(e.creds.get())
		tracking.RecordAttempt(ctx, e.queue, prep.method)
		calls++

		// in-flight calls are not aborted by cancellation
		resp, err := e.transport.Do(context.WithoutCancel(ctx), req)
		if err != nil {
			// failures below HTTP are never retried; the request may have
			// reached the server
			return nil, calls, transportFailure(err)
		}
		if resp == nil || resp.StatusCode < 100 || resp.StatusCode > 599 {
			return nil, calls, badServerResponse(resp)
		}

		code := resp.StatusCode
		switch {
		case httpclient.IsSuccessStatus(code):
			return resp.Body, calls, nil

		case code == http.StatusUnauthorized:
			if at.last == StatusUnauthorized || at.refreshing {
				return nil, calls, newStatusError(code, resp.Body)
			}
			if nerr := e.refreshToken(ctx); nerr != nil {
				return nil, calls, nerr
			}
			at = attempt{count: at.count + 1, last: StatusUnauthorized, lastCode: code}

		case isTransient(code):
			if werr := e.wait(ctx, at, code); werr != nil {
				return nil, calls, werr
			}
			at = attempt{count: at.count + 1, last: statusFromCode(code), lastCode: code, refreshing: at.refreshing}

		default:
			return nil, calls, newStatusError(code, resp.Body)
		}
	}
}

// wait sleeps the backoff before a transient retry.
func (e *engine) wait(ctx context.Context, at attempt, code int) *NetworkError {
	e.log.Warn().
		Str("queue", e.queue).
		Int("status", code).
		Int("attempt", at.count+1).
		Dur("backoff", e.backoff).
		Msg("operator retrying after transient failure")
	tracking.RecordBackoff(ctx, e.queue, code)

	if err := e.sleep(ctx, e.backoff); err != nil {
		return newCancelledError(context.Cause(ctx))
	}
	return nil
}

// refreshToken runs the refresh exchange through the same policy and
// installs the new credential.
func (e *engine) refreshToken(ctx context.Context) (nerr *NetworkError) {
	if e.refresh == nil {
		return newStatusError(http.StatusUnauthorized, nil)
	}

	prep, err := prepare(e.base, e.refresh())
	if err != nil {
		return newInvalidRequestError(err)
	}

	ctx, span := tracking.StartSpan(ctx, tracking.SpanRefresh, e.queue, prep.method, prep.url, "")
	calls := 0
	defer func() {
		outcome := tracking.OutcomeSuccess
		code := 0
		if nerr != nil {
			outcome = nerr.Status.String()
			code = nerr.StatusCode
		}
		tracking.RecordRefresh(ctx, e.queue, outcome)
		tracking.EndSpan(span, outcome, code, calls, asError(nerr))
	}()

	e.log.Info().Str("queue", e.queue).Str("url", prep.url).Msg("operator refreshing token")

	body, calls, nerr := e.execute(ctx, prep, attempt{last: StatusUnauthorized, lastCode: http.StatusUnauthorized, refreshing: true})
	if nerr != nil {
		e.log.Error().Err(nerr).Str("queue", e.queue).Msg("operator token refresh failed")
		return nerr
	}

	token, err := e.interpret(body)
	if err != nil {
		nerr = &NetworkError{Status: StatusBadServerResponse, Body: body, Err: err}
		e.log.Error().Err(nerr).Str("queue", e.queue).Msg("operator token refresh failed")
		return nerr
	}

	e.creds.set(token)
	e.log.Info().Str("queue", e.queue).Int("calls", calls).Msg("operator token refreshed")
	return nil
}

func isTransient(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ceilingError reports the status that caused the last retry, or
// too-many-requests when there was none.
func ceilingError(at attempt) *NetworkError {
	if at.count == 0 {
		return &NetworkError{Status: StatusTooManyRequests}
	}
	return &NetworkError{Status: at.last, StatusCode: at.lastCode}
}

func badServerResponse(resp *httpclient.Response) *NetworkError {
	nerr := &NetworkError{Status: StatusBadServerResponse}
	if resp != nil {
		nerr.Body = resp.Body
	}
	return nerr
}

func lastStatus(at attempt) string {
	if at.count == 0 && !at.refreshing {
		return ""
	}
	return at.last.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
