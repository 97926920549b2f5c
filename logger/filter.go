package logger

import (
	nethttp "net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines which field names are treated as sensitive.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the key
	SensitiveFields []string
	// MaskValue replaces sensitive values (default: "***")
	MaskValue string
}

// DefaultFilterConfig masks credentials, tokens and authorization headers.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"api_key", "apikey", "x-api-key",
			"token", "authorization", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach a log sink.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter. A nil config uses DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. URLs keep their structure
// and only lose the password part of the user info.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if isURL(value) {
		value = f.maskURL(value)
	}
	if f.isSensitive(key) && !isURL(value) {
		return f.config.MaskValue
	}
	return value
}

// FilterValue masks value when key is sensitive and walks header and map
// values so that nested sensitive keys are masked too.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if value == nil {
		return nil
	}
	if f.isSensitive(key) {
		return f.config.MaskValue
	}

	switch v := value.(type) {
	case nethttp.Header:
		return f.filterHeader(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case map[string][]string:
		return f.filterHeader(nethttp.Header(v))
	case map[string]any:
		return f.FilterFields(v)
	case string:
		return f.FilterString(key, v)
	default:
		return value
	}
}

// FilterFields filters every entry of fields.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = f.FilterValue(k, v)
	}
	return out
}

func (f *SensitiveDataFilter) filterHeader(h nethttp.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, values := range h {
		if f.isSensitive(k) {
			out[k] = []string{f.config.MaskValue}
			continue
		}
		out[k] = append([]string(nil), values...)
	}
	return out
}

func (f *SensitiveDataFilter) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(field)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// maskURL masks the password in the user info and any sensitive query
// parameters, leaving the rest of the URL readable.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}

	changed := false
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for k := range q {
			if f.isSensitive(k) {
				q.Set(k, f.config.MaskValue)
				changed = true
			}
		}
		if changed {
			parsed.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	// url.String escapes the mask inside user info; keep it readable.
	return strings.ReplaceAll(parsed.String(), url.QueryEscape(f.config.MaskValue), f.config.MaskValue)
}
