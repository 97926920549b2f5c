package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError is a configuration problem with actionable guidance.
// Messages are lowercase.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Category string   // "missing" or "invalid"
	Field    string   // dotted path, e.g. "operator.baseurl"
	Message  string   // what is wrong
	Action   string   // how to fix it
	Details  []string // extra hints
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	for _, p := range []string{e.Field, e.Message, e.Action} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required field that resolved to nothing.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", EnvName(field), field, DefaultFile),
	}
}

// NewInvalidFieldError reports a field whose value is not acceptable.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: "invalid", Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// EnvName returns the environment variable overriding a dotted key.
func EnvName(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
