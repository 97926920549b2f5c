package operator

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

// DefaultTimeout bounds a single exchange when the endpoint sets none.
const DefaultTimeout = 30 * time.Second

// Authorization selects whether the credential is attached to a request.
type Authorization int

const (
	// AuthToken attaches the current credential (the default)
	AuthToken Authorization = iota
	// AuthNone sends the request without an Authorization header
	AuthNone
)

// Endpoint describes one HTTP call. It is treated as immutable once submitted.
type Endpoint struct {
	// BaseURL overrides the operator base address for this endpoint
	BaseURL string `validate:"omitempty,url"`
	// Path is resolved against the base address
	Path string
	// Method defaults to GET
	Method string `validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Task   Task
	// Headers are sent as-is; they never override Authorization on token endpoints
	Headers map[string]string
	// Timeout bounds each exchange; zero means DefaultTimeout
	Timeout       time.Duration `validate:"gte=0"`
	Authorization Authorization `validate:"oneof=0 1"`
}

var (
	endpointValidator     *validator.Validate
	endpointValidatorOnce sync.Once
)

// Validate checks the endpoint fields.
func (e Endpoint) Validate() error {
	endpointValidatorOnce.Do(func() {
		endpointValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	e.Method = strings.ToUpper(e.Method)
	if err := endpointValidator.Struct(e); err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	return nil
}

type taskKind int

const (
	taskPlain taskKind = iota
	taskJSON
	taskData
	taskQuery
)

// Task is the body of a request. The zero value sends no body.
type Task struct {
	kind        taskKind
	value       any
	data        []byte
	contentType string
	query       url.Values
}

// PlainTask sends no body.
func PlainTask() Task {
	return Task{kind: taskPlain}
}

// JSONTask encodes v as the JSON body.
func JSONTask(v any) Task {
	return Task{kind: taskJSON, value: v}
}

// DataTask sends b verbatim. An empty contentType leaves the header unset.
func DataTask(b []byte, contentType string) Task {
	return Task{kind: taskData, data: b, contentType: contentType}
}

// QueryTask encodes params into the URL query and sends no body.
func QueryTask(params url.Values) Task {
	return Task{kind: taskQuery, query: params}
}

// encode returns the body, its content type and extra query parameters.
func (t Task) encode() (body []byte, contentType string, query url.Values, err error) {
	switch t.kind {
	case taskJSON:
		body, err = sonic.Marshal(t.value)
		if err != nil {
			return nil, "", nil, fmt.Errorf("encode json body: %w", err)
		}
		return body, "application/json", nil, nil
	case taskData:
		return t.data, t.contentType, nil, nil
	case taskQuery:
		return nil, "", t.query, nil
	default:
		return nil, "", nil, nil
	}
}
