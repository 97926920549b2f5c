package observability

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/gaborage/netlayer/config"
	"github.com/gaborage/netlayer/internal/tracking"
)

// syncBuffer is written by the exporter goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func enabledConfig() config.ObservabilityConfig {
	return config.ObservabilityConfig{
		Enabled:    true,
		Service:    config.ServiceConfig{Name: "netlayer-test", Version: "1.0.0"},
		Endpoint:   EndpointStdout,
		Protocol:   ProtocolHTTP,
		SampleRate: 1,
		Interval:   time.Hour,
	}
}

// restoreGlobals puts back the global providers replaced by NewProvider.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp, prop := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
		tracking.ResetForTesting()
	})
}

func TestDisabledReturnsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	p, err := NewProvider(config.ObservabilityConfig{}, nil)
	require.NoError(t, err)

	assert.IsType(t, &noopProvider{}, p)
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ObservabilityConfig)
		want   error
	}{
		{"missing service", func(c *config.ObservabilityConfig) { c.Service.Name = "" }, ErrMissingServiceName},
		{"negative sample rate", func(c *config.ObservabilityConfig) { c.SampleRate = -0.1 }, ErrInvalidSampleRate},
		{"unknown protocol", func(c *config.ObservabilityConfig) {
			c.Endpoint = "collector:4318"
			c.Protocol = "udp"
		}, ErrInvalidProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mutate(&cfg)

			p, err := NewProvider(cfg, nil)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStdoutExportsOperatorTelemetry(t *testing.T) {
	restoreGlobals(t)
	out := &syncBuffer{}

	p, err := NewProvider(enabledConfig(), nil, WithWriter(out))
	require.NoError(t, err)
	tracking.ResetForTesting()

	assert.Equal(t, p.TracerProvider(), otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())

	ctx, span := tracking.StartSpan(context.Background(), tracking.SpanRequest, "test.queue", "GET", "https://api.example.com/users", "req-1")
	tracking.RecordAttempt(ctx, "test.queue", "GET")
	tracking.EndSpan(span, tracking.OutcomeSuccess, 200, 1, nil)

	require.NoError(t, p.ForceFlush(context.Background()))

	exported := out.String()
	assert.Contains(t, exported, tracking.SpanRequest)
	assert.Contains(t, exported, "req-1")
	assert.Contains(t, exported, "netlayer.operator.attempts")
	assert.Contains(t, exported, "netlayer-test")

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestOTLPExportersAreCreatedLazily(t *testing.T) {
	for _, protocol := range []string{ProtocolHTTP, ProtocolGRPC} {
		t.Run(protocol, func(t *testing.T) {
			restoreGlobals(t)
			cfg := enabledConfig()
			cfg.Endpoint = "127.0.0.1:1"
			cfg.Protocol = protocol
			cfg.Insecure = true

			p, err := NewProvider(cfg, nil)
			require.NoError(t, err)

			// nothing was recorded; shut down without waiting on the collector
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestDefaultsFilledIn(t *testing.T) {
	cfg := enabledConfig()
	cfg.Endpoint = ""
	cfg.Interval = 0
	cfg.Service.Version = ""

	require.NoError(t, validate(&cfg))
	assert.Equal(t, EndpointStdout, cfg.Endpoint)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, "unknown", cfg.Service.Version)
}
