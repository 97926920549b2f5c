package operator

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaborage/netlayer/httpclient"
)

// Completion receives the outcome of a RequestItem. err is a *NetworkError
// when non-nil.
type Completion func(body []byte, err error)

// RequestItem pairs an endpoint with the completion that receives its result.
// Items must not be reused.
type RequestItem struct {
	Endpoint   Endpoint
	Completion Completion
}

// preparedRequest is an endpoint resolved against a base address. The
// Authorization header is stamped separately on every attempt.
type preparedRequest struct {
	method  string
	url     string
	header  http.Header
	body    []byte
	timeout time.Duration
	auth    Authorization
}

func prepare(base *url.URL, ep Endpoint) (*preparedRequest, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	target := base
	if ep.BaseURL != "" {
		override, err := url.Parse(ep.BaseURL)
		if err != nil || !override.IsAbs() {
			return nil, fmt.Errorf("invalid base url %q", ep.BaseURL)
		}
		target = override
	}
	if target == nil {
		return nil, fmt.Errorf("no base url for path %q", ep.Path)
	}

	u := *target
	if ep.Path != "" {
		u = *u.JoinPath(ep.Path)
	}

	body, contentType, query, err := ep.Task.encode()
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	header := make(http.Header, len(ep.Headers)+1)
	for k, v := range ep.Headers {
		header.Set(k, v)
	}
	if contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}

	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := ep.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &preparedRequest{
		method:  method,
		url:     u.String(),
		header:  header,
		body:    body,
		timeout: timeout,
		auth:    ep.Authorization,
	}, nil
}

// attemptRequest builds the transport request for one attempt. credential is
// the decorated token, empty when none is held.
func (p *preparedRequest) attemptRequest(credential string) *httpclient.Request {
	header := p.header.Clone()
	if p.auth == AuthToken {
		if credential != "" {
			header.Set("Authorization", credential)
		} else {
			header.Del("Authorization")
		}
	}
	return &httpclient.Request{
		Method:  p.method,
		URL:     p.url,
		Headers: header,
		Body:    p.body,
		Timeout: p.timeout,
	}
}
