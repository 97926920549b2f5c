// Package config loads netlayer configuration with koanf.
//
// Sources, lowest priority first:
//  1. built-in defaults
//  2. a YAML document (file or raw bytes)
//  3. environment variables prefixed with NETLAYER_
//     (NETLAYER_OPERATOR_BASEURL overrides operator.baseurl)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment variable read by the loader
	EnvPrefix = "NETLAYER_"
	// DefaultFile is the YAML file Load reads when present
	DefaultFile = "netlayer.yaml"
)

// Load resolves defaults, DefaultFile when it exists, and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(DefaultFile); err == nil {
		if err := k.Load(file.Provider(DefaultFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", DefaultFile, err)
	}

	return finish(k)
}

// LoadFrom is like Load but reads the YAML document at path, which must exist.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return finish(k)
}

// LoadBytes is like Load but reads the YAML document from b.
func LoadBytes(b []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	// NETLAYER_TRANSPORT_RATELIMIT_LIMIT -> transport.ratelimit.limit
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"operator.queue":               "default.http.operator.queue",
		"operator.maxattempts":         3,
		"operator.backoff":             "1s",
		"operator.auth.scheme":         "Bearer",
		"operator.auth.refresh.method": "POST",
		"operator.auth.refresh.field":  "token",

		"transport.timeout":            "30s",
		"transport.logpayloads":        false,
		"transport.maxpayloadlogbytes": 1024,
		"transport.traceidheader":      "X-Request-ID",
		"transport.w3ctrace":           false,
		"transport.ratelimit.limit":    0,
		"transport.ratelimit.burst":    0,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":         false,
		"observability.service.name":    "netlayer",
		"observability.service.version": "dev",
		"observability.endpoint":        "stdout",
		"observability.protocol":        "http",
		"observability.insecure":        false,
		"observability.samplerate":      1.0,
		"observability.interval":        "15s",
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}
