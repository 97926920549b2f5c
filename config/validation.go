package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return koanfName(fld.Tag.Get("koanf"), fld.Name)
		})
	})
	return validate
}

// Validate checks struct constraints and the base address.
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	_, err := ParseBaseURL(cfg.Operator.BaseURL)
	return err
}

// ParseBaseURL parses an absolute http(s) base address.
func ParseBaseURL(raw string) (*url.URL, error) {
	const field = "operator.baseurl"
	if raw == "" {
		return nil, NewMissingFieldError(field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewInvalidFieldError(field, fmt.Sprintf("unparsable url %q: %v", raw, err), nil)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, NewInvalidFieldError(field, fmt.Sprintf("url %q must be absolute", raw), nil)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewInvalidFieldError(field, fmt.Sprintf("unsupported scheme %q", u.Scheme), []string{"http", "https"})
	}
	return u, nil
}

// fieldError turns a validator failure into a ConfigError on the dotted path.
func fieldError(fe validator.FieldError) *ConfigError {
	// Namespace is "Config.operator.maxattempts"; drop the root type name.
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("value %v violates %s=%s", fe.Value(), fe.Tag(), fe.Param()), nil)
	}
}

func koanfName(tag, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return strings.ToLower(fallback)
	}
	return name
}
