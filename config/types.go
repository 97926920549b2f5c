package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the complete netlayer configuration. Values are resolved from
// defaults, an optional YAML document and NETLAYER_* environment variables.
type Config struct {
	Operator  OperatorConfig  `koanf:"operator" json:"operator" yaml:"operator"`
	Transport TransportConfig `koanf:"transport" json:"transport" yaml:"transport"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	// Observability controls span and metric export
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	// k keeps the resolved koanf tree for keys outside the typed structure
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// OperatorConfig holds the request operator settings.
type OperatorConfig struct {
	// BaseURL is the absolute address every endpoint path is resolved against
	BaseURL string `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required"`
	// Queue names the execution lane in logs and metrics
	Queue string `koanf:"queue" json:"queue" yaml:"queue" validate:"required"`
	// MaxAttempts is the attempt ceiling per request. Default: 3.
	MaxAttempts int `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" validate:"gte=1,lte=10"`
	// Backoff is the fixed wait before a transient retry. Default: 1s.
	Backoff time.Duration `koanf:"backoff" json:"backoff" yaml:"backoff" validate:"gte=0"`
	Auth    AuthConfig    `koanf:"auth" json:"auth" yaml:"auth"`
}

// AuthConfig controls how the credential is attached and refreshed.
type AuthConfig struct {
	// Scheme prefixes the raw token in the Authorization header. Default: Bearer.
	Scheme  string        `koanf:"scheme" json:"scheme" yaml:"scheme"`
	Refresh RefreshConfig `koanf:"refresh" json:"refresh" yaml:"refresh"`
}

// RefreshConfig describes the token refresh endpoint. An empty path disables
// refresh: a 401 then fails as unauthorized.
type RefreshConfig struct {
	Path   string `koanf:"path" json:"path" yaml:"path"`
	Method string `koanf:"method" json:"method" yaml:"method" validate:"omitempty,oneof=GET POST PUT PATCH"`
	// Field is the JSON field carrying the new token. Default: token.
	Field string `koanf:"field" json:"field" yaml:"field"`
}

// TransportConfig holds the HTTP transport settings.
type TransportConfig struct {
	Timeout            time.Duration   `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	LogPayloads        bool            `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int             `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
	TraceIDHeader      string          `koanf:"traceidheader" json:"traceidheader" yaml:"traceidheader"`
	W3CTrace           bool            `koanf:"w3ctrace" json:"w3ctrace" yaml:"w3ctrace"`
	RateLimit          RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
}

// RateLimitConfig throttles outbound calls. A zero Limit disables throttling.
type RateLimitConfig struct {
	// Limit is the sustained number of calls per second
	Limit float64 `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ObservabilityConfig selects where operator spans and metrics are exported.
// Disabled leaves the global OpenTelemetry providers untouched.
type ObservabilityConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service"`
	// Endpoint is "stdout" or an OTLP collector host:port
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required"`
	Protocol string `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=http grpc"`
	Insecure bool   `koanf:"insecure" json:"insecure" yaml:"insecure"`
	// SampleRate is the fraction of traces kept, 0.0 to 1.0
	SampleRate float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
	// Interval is the metric export period
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
}

// ServiceConfig identifies the process in exported telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// String returns a raw value by dotted key, e.g. "operator.baseurl".
func (c *Config) String(key string) string {
	if c == nil || c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was resolved from any source.
func (c *Config) Exists(key string) bool {
	if c == nil || c.k == nil {
		return false
	}
	return c.k.Exists(key)
}
