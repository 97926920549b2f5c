// Package observability installs OpenTelemetry trace and meter providers so
// the spans and metrics recorded by the operator reach an exporter. Telemetry
// goes to stdout for local runs or to an OTLP collector over HTTP or gRPC.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/netlayer/config"
	"github.com/gaborage/netlayer/logger"
)

const (
	// EndpointStdout writes telemetry to the configured writer instead of a collector
	EndpointStdout = "stdout"
	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"
	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// DefaultInterval is the metric export period when none is configured
	DefaultInterval = 15 * time.Second
)

// Provider manages the lifecycle of the tracing and metrics providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	// Shutdown flushes pending telemetry and stops the exporters.
	Shutdown(ctx context.Context) error
	// ForceFlush exports pending telemetry immediately.
	ForceFlush(ctx context.Context) error
}

// Option customizes provider construction.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter sets the destination of the stdout exporters. Default: os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

type provider struct {
	cfg            config.ObservabilityConfig
	opts           options
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider builds the providers described by cfg and installs them as the
// global OpenTelemetry providers, together with the W3C trace context
// propagator. A disabled configuration returns a no-op provider.
func NewProvider(cfg config.ObservabilityConfig, log logger.Logger, opts ...Option) (Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled {
		log.Debug().Msg("observability disabled, using no-op provider")
		return newNoopProvider(), nil
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	p := &provider{cfg: cfg, log: log, opts: options{writer: os.Stdout}}
	for _, opt := range opts {
		opt(&p.opts)
	}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := p.initTraceProvider(res); err != nil {
		return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
	}
	if err := p.initMeterProvider(res); err != nil {
		_ = p.tracerProvider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.Service.Name).
		Str("endpoint", cfg.Endpoint).
		Str("protocol", cfg.Protocol).
		Dur("interval", cfg.Interval).
		Msg("observability provider started")
	return p, nil
}

func validate(cfg *config.ObservabilityConfig) error {
	if cfg.Service.Name == "" {
		return ErrMissingServiceName
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = EndpointStdout
	}
	if cfg.Endpoint != EndpointStdout && cfg.Protocol != ProtocolHTTP && cfg.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol %q: %w", cfg.Protocol, ErrInvalidProtocol)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "unknown"
	}
	return nil
}

// createResource merges the SDK defaults with the service identity. The
// custom part carries no schema URL so the merge cannot conflict.
func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.cfg.Service.Name),
			semconv.ServiceVersion(p.cfg.Service.Version),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.cfg.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	if p.cfg.Endpoint == EndpointStdout {
		return stdouttrace.New(
			stdouttrace.WithWriter(p.opts.writer),
			stdouttrace.WithPrettyPrint(),
		)
	}

	p.log.Debug().
		Str("endpoint", p.cfg.Endpoint).
		Str("protocol", p.cfg.Protocol).
		Str("insecure", fmt.Sprint(p.cfg.Insecure)).
		Msg("creating OTLP trace exporter")

	switch p.cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.cfg.Endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(p.cfg.Endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(context.Background(), opts...)
	}
}

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(p.cfg.Interval))),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	if p.cfg.Endpoint == EndpointStdout {
		return stdoutmetric.New(
			stdoutmetric.WithWriter(p.opts.writer),
			stdoutmetric.WithPrettyPrint(),
		)
	}

	switch p.cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.cfg.Endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(p.cfg.Endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	}
}

func (p *provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flush errors: %w", errors.Join(errs...))
	}
	return nil
}
