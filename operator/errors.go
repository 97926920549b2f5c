package operator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gaborage/netlayer/httpclient"
)

// Status classifies a failed request.
type Status int

const (
	// StatusHTTP is any status code without a dedicated classification
	StatusHTTP Status = iota
	StatusBadRequest
	StatusUnauthorized
	StatusTooManyRequests
	StatusBadGateway
	StatusServiceUnavailable
	StatusGatewayTimeout
	StatusTimedOut
	StatusInternalServerError
	// StatusBadServerResponse means the reply was not a usable HTTP response
	StatusBadServerResponse
	// StatusTransport wraps a failure below HTTP (dial, TLS, reset ...)
	StatusTransport
	StatusCancelled
	// StatusInvalidRequest means the endpoint could not be turned into a request
	StatusInvalidRequest
)

var statusNames = map[Status]string{
	StatusHTTP:                "http",
	StatusBadRequest:          "bad_request",
	StatusUnauthorized:        "unauthorized",
	StatusTooManyRequests:     "too_many_requests",
	StatusBadGateway:          "bad_gateway",
	StatusServiceUnavailable:  "service_unavailable",
	StatusGatewayTimeout:      "gateway_timeout",
	StatusTimedOut:            "timed_out",
	StatusInternalServerError: "internal_server_error",
	StatusBadServerResponse:   "bad_server_response",
	StatusTransport:           "transport",
	StatusCancelled:           "cancelled",
	StatusInvalidRequest:      "invalid_request",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// statusFromCode maps an HTTP status code to its classification.
func statusFromCode(code int) Status {
	switch code {
	case http.StatusBadRequest:
		return StatusBadRequest
	case http.StatusUnauthorized:
		return StatusUnauthorized
	case http.StatusRequestTimeout:
		return StatusTimedOut
	case http.StatusTooManyRequests:
		return StatusTooManyRequests
	case http.StatusInternalServerError:
		return StatusInternalServerError
	case http.StatusBadGateway:
		return StatusBadGateway
	case http.StatusServiceUnavailable:
		return StatusServiceUnavailable
	case http.StatusGatewayTimeout:
		return StatusGatewayTimeout
	default:
		return StatusHTTP
	}
}

// NetworkError is the only error type delivered to completions.
type NetworkError struct {
	Status Status
	// StatusCode is the HTTP status that caused the failure, 0 when none
	StatusCode int
	// Body is the response payload, when a response was received
	Body []byte
	// Err is the underlying cause for transport, cancellation and
	// invalid-request failures
	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("network error: %s (status %d): %v", e.Status, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("network error: %s (status %d)", e.Status, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("network error: %s: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("network error: %s", e.Status)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a *NetworkError with the given status.
func IsStatus(err error, status Status) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr) && nerr.Status == status
}

func newStatusError(code int, body []byte) *NetworkError {
	return &NetworkError{Status: statusFromCode(code), StatusCode: code, Body: body}
}

func newCancelledError(cause error) *NetworkError {
	if cause == nil {
		cause = context.Canceled
	}
	return &NetworkError{Status: StatusCancelled, Err: cause}
}

func newInvalidRequestError(err error) *NetworkError {
	return &NetworkError{Status: StatusInvalidRequest, Err: err}
}

// transportFailure classifies an error returned by the transport.
func transportFailure(err error) *NetworkError {
	switch {
	case errors.Is(err, context.Canceled):
		return newCancelledError(err)
	case httpclient.IsErrorType(err, httpclient.TimeoutError):
		return &NetworkError{Status: StatusTimedOut, Err: err}
	case httpclient.IsErrorType(err, httpclient.ValidationError):
		return newInvalidRequestError(err)
	default:
		return &NetworkError{Status: StatusTransport, Err: err}
	}
}

// asError keeps a nil *NetworkError from becoming a non-nil error.
func asError(nerr *NetworkError) error {
	if nerr == nil {
		return nil
	}
	return nerr
}
