package operator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

// TokenDecorator turns a raw token into an Authorization header value.
type TokenDecorator func(raw string) string

// TokenInterpreter extracts the raw token from a refresh response body.
type TokenInterpreter func(body []byte) (string, error)

// RefreshEndpointProvider returns the endpoint that issues a new token.
type RefreshEndpointProvider func() Endpoint

// ErrNoToken is returned by interpreters when the body carries no token.
var ErrNoToken = errors.New("response carries no token")

// BearerDecorator produces "Bearer <raw>".
func BearerDecorator(raw string) string {
	return "Bearer " + raw
}

// SchemeDecorator prefixes raw with scheme. An empty scheme sends raw as-is.
func SchemeDecorator(scheme string) TokenDecorator {
	if scheme == "" {
		return func(raw string) string { return raw }
	}
	return func(raw string) string { return scheme + " " + raw }
}

// JSONTokenInterpreter reads the string field of a JSON object body, e.g.
// {"token": "..."} with field "token".
func JSONTokenInterpreter(field string) TokenInterpreter {
	return func(body []byte) (string, error) {
		var doc map[string]any
		if err := sonic.Unmarshal(body, &doc); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		token, ok := doc[field].(string)
		if !ok || token == "" {
			return "", fmt.Errorf("field %q: %w", field, ErrNoToken)
		}
		return token, nil
	}
}

// credentials holds the decorated token. SetToken and ClearToken may be
// called from any goroutine while the lane reads it.
type credentials struct {
	mu       sync.RWMutex
	value    string
	decorate TokenDecorator
}

func (c *credentials) set(raw string) {
	decorated := c.decorate(raw)
	c.mu.Lock()
	c.value = decorated
	c.mu.Unlock()
}

func (c *credentials) clear() {
	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
}

func (c *credentials) get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}
