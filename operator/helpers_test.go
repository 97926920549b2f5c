package operator

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/netlayer/httpclient"
	"github.com/gaborage/netlayer/logger"
	testconsts "github.com/gaborage/netlayer/testing"
)

const (
	testBaseURL     = testconsts.TestBaseURL
	testRefreshPath = testconsts.TestRefreshPath
	testUsersPath   = testconsts.TestUsersPath
)

type reply struct {
	status int
	body   string
	err    error
}

// fakeTransport answers from per-path scripts and records every request.
// When a path script runs out, its last reply repeats.
type fakeTransport struct {
	mu       sync.Mutex
	scripts  map[string][]reply
	handler  func(req *httpclient.Request) reply
	requests []*httpclient.Request
	// block, when set, is received from before each reply
	block chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{scripts: make(map[string][]reply)}
}

func (f *fakeTransport) script(path string, replies ...reply) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[path] = replies
	return f
}

func (f *fakeTransport) Do(_ context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	var r reply
	if f.handler != nil {
		handler := f.handler
		f.mu.Unlock()
		r = handler(req)
	} else {
		path := pathOf(req.URL)
		replies := f.scripts[path]
		switch {
		case len(replies) == 0:
			r = reply{status: http.StatusNotFound}
		case len(replies) == 1:
			r = replies[0]
		default:
			r = replies[0]
			f.scripts[path] = replies[1:]
		}
		f.mu.Unlock()
	}

	if r.err != nil {
		return nil, r.err
	}
	return &httpclient.Response{StatusCode: r.status, Body: []byte(r.body), Headers: http.Header{}}, nil
}

func (f *fakeTransport) callsTo(path string) []*httpclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*httpclient.Request
	for _, req := range f.requests {
		if pathOf(req.URL) == path {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeTransport) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

// sleepCounter replaces the backoff wait and counts how often it ran.
type sleepCounter struct {
	count atomic.Int32
	last  atomic.Int64
}

func (s *sleepCounter) sleep(ctx context.Context, d time.Duration) error {
	s.count.Add(1)
	s.last.Store(int64(d))
	return ctx.Err()
}

func (s *sleepCounter) calls() int {
	return int(s.count.Load())
}

func refreshEndpoint() Endpoint {
	return Endpoint{Path: testRefreshPath, Method: http.MethodPost}
}

func newTestOperator(t *testing.T, transport httpclient.Client, sleeps *sleepCounter) *Operator {
	t.Helper()
	return newTestBuilder(transport, sleeps).build(t)
}

func newTestBuilder(transport httpclient.Client, sleeps *sleepCounter) *Builder {
	b := NewBuilder(logger.Nop()).
		WithBaseURL(testBaseURL).
		WithTransport(transport).
		WithRefreshEndpoint(refreshEndpoint)
	if sleeps != nil {
		b = b.withSleep(sleeps.sleep)
	}
	return b
}

func (b *Builder) build(t *testing.T) *Operator {
	t.Helper()
	op, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(op.Close)
	return op
}

type outcome struct {
	body []byte
	err  error
}

// submit sends ep and returns a channel receiving its single outcome.
func submit(op HTTPOperator, ep Endpoint) <-chan outcome {
	ch := make(chan outcome, 2)
	op.SendRequest(context.Background(), &RequestItem{
		Endpoint: ep,
		Completion: func(body []byte, err error) {
			ch <- outcome{body: body, err: err}
		},
	})
	return ch
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(testconsts.TestCompletionTimeout):
		t.Fatal("completion was not delivered")
		return outcome{}
	}
}
