package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/netlayer/httpclient"
)

// MockTransport provides a testify-based mock implementation of the httpclient.Client interface.
//
// Example usage:
//
//	transport := mocks.NewMockTransport()
//	transport.ExpectStatus(http.MethodGet, "https://api.example.com/users", http.StatusUnauthorized, "").Once()
//	transport.ExpectStatus(http.MethodGet, "https://api.example.com/users", http.StatusOK, `[]`)
//
//	op, _ := operator.NewBuilder(log).WithBaseURL("https://api.example.com").WithTransport(transport).Build()
type MockTransport struct {
	mock.Mock
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Do implements httpclient.Client
func (m *MockTransport) Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	args := m.Called(ctx, req)
	var resp *httpclient.Response
	if r := args.Get(0); r != nil {
		resp = r.(*httpclient.Response)
	}
	return resp, args.Error(1)
}

// MatchRequest matches a request by method and URL.
func MatchRequest(method, url string) any {
	return mock.MatchedBy(func(req *httpclient.Request) bool {
		return req != nil && req.Method == method && req.URL == url
	})
}

// MatchAuthorization matches a request carrying the given Authorization header.
// An empty value matches requests without one.
func MatchAuthorization(value string) any {
	return mock.MatchedBy(func(req *httpclient.Request) bool {
		return req != nil && req.Headers.Get("Authorization") == value
	})
}

// ExpectStatus sets up a reply with statusCode and body for method and url.
func (m *MockTransport) ExpectStatus(method, url string, statusCode int, body string) *mock.Call {
	return m.On("Do", mock.Anything, MatchRequest(method, url)).
		Return(&httpclient.Response{
			StatusCode: statusCode,
			Body:       []byte(body),
			Headers:    http.Header{},
		}, nil)
}

// ExpectError sets up a transport failure for method and url.
func (m *MockTransport) ExpectError(method, url string, err error) *mock.Call {
	return m.On("Do", mock.Anything, MatchRequest(method, url)).
		Return(nil, err)
}

// Requests returns the requests the mock received, in order.
func (m *MockTransport) Requests() []*httpclient.Request {
	var out []*httpclient.Request
	for _, call := range m.Calls {
		if call.Method != "Do" {
			continue
		}
		if req, ok := call.Arguments.Get(1).(*httpclient.Request); ok {
			out = append(out, req)
		}
	}
	return out
}
