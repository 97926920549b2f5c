// Package tracking holds the OpenTelemetry instruments used by the request
// operator. Instruments are created lazily from the global meter provider.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for operator instrumentation
	operatorMeterName = "netlayer/operator"

	// Request duration follows the OTel HTTP client convention
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds

	// Operator-specific metrics
	metricRequests   = "netlayer.operator.requests"    // Counter of terminal outcomes
	metricAttempts   = "netlayer.operator.attempts"    // Counter of transport calls
	metricBackoffs   = "netlayer.operator.backoffs"    // Counter of transient retries
	metricRefreshes  = "netlayer.operator.refreshes"   // Counter of refresh exchanges
	metricQueueDepth = "netlayer.operator.queue.depth" // Observable UpDownCounter

	attrQueue      = "netlayer.queue"
	attrOutcome    = "netlayer.outcome"
	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrResult     = "netlayer.refresh.result"
)

// OutcomeSuccess marks a request that completed with a 2xx body
const OutcomeSuccess = "success"

var (
	operatorMeter metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	attemptCounter  metric.Int64Counter
	backoffCounter  metric.Int64Counter
	refreshCounter  metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize operator metric %s: %v\n", metricName, err)
	}
}

func initOperatorMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if operatorMeter != nil {
		return
	}

	operatorMeter = otel.Meter(operatorMeterName)

	var err error
	requestDuration, err = operatorMeter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of operator requests including retries and refresh"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	requestCounter, err = operatorMeter.Int64Counter(
		metricRequests,
		metric.WithDescription("Number of requests completed, by outcome"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricRequests, err)

	attemptCounter, err = operatorMeter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Number of transport calls issued"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	backoffCounter, err = operatorMeter.Int64Counter(
		metricBackoffs,
		metric.WithDescription("Number of transient-failure retries scheduled"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricBackoffs, err)

	refreshCounter, err = operatorMeter.Int64Counter(
		metricRefreshes,
		metric.WithDescription("Number of credential refresh exchanges"),
		metric.WithUnit("{refresh}"),
	)
	logMetricError(metricRefreshes, err)

	metricsInited = true
}

func ensureOperatorMeterInitialized() {
	meterOnce.Do(initOperatorMeter)
}

// RecordRequest records the terminal outcome of one request.
// statusCode is 0 when no response was received.
func RecordRequest(ctx context.Context, queue, method, outcome string, statusCode int, duration time.Duration) {
	ensureOperatorMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrQueue, queue),
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, statusCode))
	}

	if requestDuration != nil {
		requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordAttempt records one transport call.
func RecordAttempt(ctx context.Context, queue, method string) {
	ensureOperatorMeterInitialized()
	if attemptCounter != nil {
		attemptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrQueue, queue),
			attribute.String(attrMethod, method),
		))
	}
}

// RecordBackoff records a retry scheduled after a transient status.
func RecordBackoff(ctx context.Context, queue string, statusCode int) {
	ensureOperatorMeterInitialized()
	if backoffCounter != nil {
		backoffCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrQueue, queue),
			attribute.Int(attrStatusCode, statusCode),
		))
	}
}

// RecordRefresh records a refresh exchange. outcome is OutcomeSuccess or
// the failure classification.
func RecordRefresh(ctx context.Context, queue, outcome string) {
	ensureOperatorMeterInitialized()
	if refreshCounter == nil {
		return
	}

	result := "success"
	if outcome != OutcomeSuccess {
		result = "failure"
	}
	refreshCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrQueue, queue),
		attribute.String(attrResult, result),
		attribute.String(attrOutcome, outcome),
	))
}

// RegisterQueueMetrics exposes the pending depth of a queue. depth is called
// on every collection. The returned function unregisters the callback.
func RegisterQueueMetrics(queue string, depth func() int) func() {
	ensureOperatorMeterInitialized()

	noop := func() { /** no-op **/ }
	if operatorMeter == nil {
		return noop
	}

	gauge, err := operatorMeter.Int64ObservableUpDownCounter(
		metricQueueDepth,
		metric.WithDescription("Units waiting in the dispatch queue"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		logMetricError(metricQueueDepth, err)
		return noop
	}

	attrs := metric.WithAttributes(attribute.String(attrQueue, queue))
	registration, err := operatorMeter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(gauge, int64(depth()), attrs)
		return nil
	}, gauge)
	if err != nil {
		logMetricError("queue_depth_callback", err)
		return noop
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("queue_depth_unregister", err)
		}
	}
}

// IsInitialized returns true if operator metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	operatorMeter = nil
	requestDuration = nil
	requestCounter = nil
	attemptCounter = nil
	backoffCounter = nil
	refreshCounter = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
