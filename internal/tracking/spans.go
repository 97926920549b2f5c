package tracking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "netlayer/operator"

	// SpanRequest wraps one request from start to completion
	SpanRequest = "operator.request"
	// SpanRefresh wraps a credential refresh exchange
	SpanRefresh = "operator.refresh"

	attrRequestID = "netlayer.request_id"
	attrURL       = "url.full"
	attrAttempts  = "netlayer.attempts"
)

// StartSpan opens a client span for a request handled by queue.
func StartSpan(ctx context.Context, name, queue, method, url, requestID string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String(attrQueue, queue),
			attribute.String(attrMethod, method),
			attribute.String(attrURL, url),
			attribute.String(attrRequestID, requestID),
		),
	)
}

// EndSpan records the outcome and ends span. err is nil on success.
func EndSpan(span oteltrace.Span, outcome string, statusCode, attempts int, err error) {
	span.SetAttributes(
		attribute.String(attrOutcome, outcome),
		attribute.Int(attrAttempts, attempts),
	)
	if statusCode > 0 {
		span.SetAttributes(attribute.Int(attrStatusCode, statusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
